package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"outreach-engine/internal/config"
	"outreach-engine/internal/httpapi"
	"outreach-engine/internal/scheduler"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := loadBootstrap(opts)
	if err != nil {
		return err
	}
	defer func() { _ = b.log.Sync() }()
	log := b.log

	lock := flock.New(filepath.Join(b.dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return errors.New("another engine is already running on " + b.dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	a, err := buildApp(ctx, b)
	if err != nil {
		return err
	}
	defer a.Close()

	// Tasks left running by a previous process can never finish.
	if err := a.sweep(ctx); err != nil {
		log.Warn("startup sweep failed", zap.Error(err))
	}

	sched := scheduler.New(ctx, log)
	if err := sched.Add(b.cfg.Supervisor.Schedule, "supervisor", func(ctx context.Context) error {
		_, err := a.sup.Sweep(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := sched.Add(b.cfg.Retry.SweepSchedule, "retry-failed", func(ctx context.Context) error {
		_, err := a.engine.RetryFailedCompanies(ctx)
		return err
	}); err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", b.cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	token, err := shutdownToken(b.dataDir)
	if err != nil {
		return err
	}

	handler := httpapi.NewRouter(httpapi.Deps{
		Engine:      a.engine,
		DB:          a.db.Pool,
		Hub:         a.hub,
		CfgVal:      b.cfgVal,
		UserCfgPath: b.cfgPath,
		LoadCfg: func() (config.Config, error) {
			cfg, err := loadConfig(b.cfgPath)
			if err != nil {
				return cfg, err
			}
			if vr := validate(&cfg); !vr.OK() {
				return cfg, vr
			}
			return cfg, nil
		},
		ShutdownToken: token,
		Shutdown:      stop,
		Gatherer:      a.registry,
		Log:           log,
	})

	log.Info("engine starting",
		zap.String("addr", addr),
		zap.String("data_dir", b.dataDir),
		zap.String("quota_backend", b.cfg.Quota.Backend))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpapi.Serve(gctx, ln, handler, log)
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	return g.Wait()
}

// shutdownToken reuses OUTREACH_SHUTDOWN_TOKEN or writes a fresh random token
// to <data_dir>/engine.token for the desktop shell to read.
func shutdownToken(dataDir string) (string, error) {
	if t := os.Getenv("OUTREACH_SHUTDOWN_TOKEN"); t != "" {
		return t, nil
	}
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf[:])
	if err := os.WriteFile(filepath.Join(dataDir, "engine.token"), []byte(token), 0o600); err != nil {
		return "", err
	}
	return token, nil
}

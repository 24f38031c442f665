package httpapi

import (
	"database/sql"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"outreach-engine/internal/config"
	"outreach-engine/internal/events"
	"outreach-engine/internal/workflow"
)

type Deps struct {
	Engine *workflow.Engine
	DB     *sql.DB // health ping and WAL checkpoint

	Hub *events.Hub

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Shutdown is exposed at POST /shutdown when both are set.
	ShutdownToken string
	Shutdown      func()

	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Log      *zap.Logger
}

// Package worker runs background stage operations. Work sharing a key runs
// in submission order on one goroutine; different keys run concurrently.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"outreach-engine/internal/logging"
)

var ErrClosed = errors.New("worker pool closed")

// Job is one unit of background work. The context is not tied to any request.
type Job func(ctx context.Context)

// Dispatcher hands work off to run detached from the caller.
type Dispatcher interface {
	Dispatch(key string, job Job) error
}

type Pool struct {
	shards []chan Job
	log    *zap.Logger
	ctx    context.Context

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(shards, queueSize int, log *zap.Logger) *Pool {
	if shards <= 0 {
		shards = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Pool{
		shards: make([]chan Job, shards),
		log:    logging.OrNop(log).Named("worker"),
		ctx:    context.Background(),
	}
	for i := range p.shards {
		ch := make(chan Job, queueSize)
		p.shards[i] = ch
		p.wg.Add(1)
		go p.run(i, ch)
	}
	return p
}

// Dispatch queues job on the shard owning key. It blocks while that shard's
// queue is full.
func (p *Pool) Dispatch(key string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.shards[p.shardFor(key)] <- job
	return nil
}

func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *Pool) run(i int, ch chan Job) {
	defer p.wg.Done()
	for job := range ch {
		p.safeRun(i, job)
	}
}

func (p *Pool) safeRun(i int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked",
				zap.Int("shard", i),
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	job(p.ctx)
}

// Close stops accepting work and waits for queued jobs to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, ch := range p.shards {
		close(ch)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Inline runs each job immediately on the caller's goroutine.
type Inline struct{}

func (Inline) Dispatch(_ string, job Job) error {
	job(context.Background())
	return nil
}

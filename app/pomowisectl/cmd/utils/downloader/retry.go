package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// MaxAttempts bounds how often the unit runs, the first try included.
	MaxAttempts    = 3
	BackoffBase    = 1000 * time.Millisecond
	AttemptTimeout = 10 * time.Minute
)

// ChecksumResolver returns the expected hex digest published at url.
type ChecksumResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// Job names one archive download.
type Job struct {
	ArchiveURL  string
	ChecksumURL string
	FinalPath   string
}

// Result describes a committed download.
type Result struct {
	Path     string
	SHA256   string
	Bytes    int64
	Attempts int
}

// SleepFunc waits for d or until ctx is done. It replaces the real timer
// between attempts, mainly for tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

type OrchestratorOption func(*Orchestrator)

func WithMaxAttempts(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithBackoffBase(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.backoffBase = d
	}
}

// WithAttemptTimeout bounds each attempt. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.attemptTimeout = d
	}
}

func WithSleep(fn SleepFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sleep = fn
	}
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// Orchestrator retries checksum lookup, streaming and commit as one unit.
type Orchestrator struct {
	checksums      ChecksumResolver
	engine         *Engine
	committer      *Committer
	maxAttempts    int
	backoffBase    time.Duration
	attemptTimeout time.Duration
	sleep          SleepFunc
	logger         *slog.Logger
}

func NewOrchestrator(checksums ChecksumResolver, engine *Engine, committer *Committer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		checksums:      checksums,
		engine:         engine,
		committer:      committer,
		maxAttempts:    MaxAttempts,
		backoffBase:    BackoffBase,
		attemptTimeout: AttemptTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewBackOff returns the wait schedule for maxAttempts tries: base, 2*base,
// 4*base, ... with no jitter, stopping after maxAttempts-1 waits.
func NewBackOff(base time.Duration, maxAttempts int) backoff.BackOff {
	if maxAttempts <= 1 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(maxAttempts-1))
}

// Download runs the unit until it succeeds or maxAttempts tries have failed.
// With the defaults that is 3 tries separated by waits of 1s and 2s. The error
// of the last attempt is returned unchanged. If ctx is cancelled, no further
// attempt is made and the context error is returned.
func (o *Orchestrator) Download(ctx context.Context, job Job) (*Result, error) {
	var (
		res      *Result
		attempts int
	)

	operation := func() error {
		attempts++
		r, err := o.attempt(ctx, job)
		if err == nil {
			res = r
			return nil
		}
		if ctx.Err() != nil {
			o.logger.Warn("Download cancelled", "url", job.ArchiveURL)
			return backoff.Permanent(ctx.Err())
		}
		o.logger.Warn("Download attempt failed", "attempt", attempts, "url", job.ArchiveURL, "error", err)
		return err
	}
	notify := func(err error, delay time.Duration) {
		o.logger.Info("Retrying download", "attempt", attempts+1, "max_attempts", o.maxAttempts, "delay", delay, "url", job.ArchiveURL)
	}

	var timer backoff.Timer
	if o.sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: o.sleep}
	}

	schedule := backoff.WithContext(NewBackOff(o.backoffBase, o.maxAttempts), ctx)
	if err := backoff.RetryNotifyWithTimer(operation, schedule, notify, timer); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("download cancelled: %w", ctx.Err())
		}
		return nil, err
	}

	res.Attempts = attempts
	return res, nil
}

func (o *Orchestrator) attempt(parent context.Context, job Job) (*Result, error) {
	ctx := parent
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, o.attemptTimeout)
		defer cancel()
	}

	expected, err := o.checksums.Resolve(ctx, job.ChecksumURL)
	if err != nil {
		return nil, err
	}

	s := NewSession(job.ArchiveURL, job.FinalPath)
	actual, err := o.engine.Stream(ctx, s)
	if err != nil {
		if dErr := o.committer.Discard(parent, s); dErr != nil {
			o.logger.Error("Failed to discard partial download", "path", s.TempPath, "error", dErr)
		}
		if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
			return nil, fmt.Errorf("attempt timed out after %s: %w", o.attemptTimeout, err)
		}
		return nil, err
	}

	if err := o.committer.Commit(parent, s, actual, expected); err != nil {
		return nil, err
	}

	return &Result{
		Path:   s.FinalPath,
		SHA256: actual,
		Bytes:  s.BytesReceived,
	}, nil
}

// sleepTimer drives the backoff wait through a SleepFunc. The channel fires
// only when the sleep completed; a cancelled sleep leaves it to ctx.Done.
type sleepTimer struct {
	ctx   context.Context
	sleep SleepFunc
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}

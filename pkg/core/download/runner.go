package download

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// RunFunc executes the download script and returns its combined output.
type RunFunc func(ctx context.Context, script string, args []string) ([]byte, error)

// RunnerConfig configures a ScriptRunner.
type RunnerConfig struct {
	Script      string
	Concurrency int64
	Timeout     time.Duration
}

// ScriptRunner runs the external download script in the background. At most
// Concurrency scripts run at once, identical in-flight jobs share a ticket,
// and every run is bounded by Timeout.
type ScriptRunner struct {
	cfg    RunnerConfig
	sem    *semaphore.Weighted
	run    RunFunc
	logger zerolog.Logger
	now    func() time.Time

	root   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[string]Ticket
	wg       sync.WaitGroup
}

var _ Submitter = (*ScriptRunner)(nil)

func NewScriptRunner(cfg RunnerConfig, logger zerolog.Logger) *ScriptRunner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	root, cancel := context.WithCancel(context.Background())
	return &ScriptRunner{
		cfg:      cfg,
		root:     root,
		cancel:   cancel,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		run:      execScript,
		logger:   logger.With().Str("component", "download").Logger(),
		now:      time.Now,
		inflight: make(map[string]Ticket),
	}
}

// WithRunFunc replaces the process launcher, e.g. in tests.
func (r *ScriptRunner) WithRunFunc(fn RunFunc) *ScriptRunner {
	r.run = fn
	return r
}

// Submit validates job and starts it in the background. ctx only bounds the
// submission itself; the run continues after the caller returns until it
// finishes, times out, or the runner is closed.
func (r *ScriptRunner) Submit(ctx context.Context, job Job) (Ticket, error) {
	if err := job.Validate(); err != nil {
		return Ticket{}, err
	}
	if err := ctx.Err(); err != nil {
		return Ticket{}, err
	}
	if err := r.root.Err(); err != nil {
		return Ticket{}, fmt.Errorf("download runner closed: %w", err)
	}

	key := job.key()
	r.mu.Lock()
	if t, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		t.Deduplicated = true
		return t, nil
	}
	ticket := Ticket{ID: uuid.NewString(), SubmittedAt: r.now()}
	r.inflight[key] = ticket
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.Info().
		Str("ticket", ticket.ID).
		Strs("tickers", job.Tickers).
		Strs("filing_types", job.FilingTypes).
		Msg("filing download submitted")

	go r.execute(key, ticket, job)
	return ticket, nil
}

func (r *ScriptRunner) execute(key string, ticket Ticket, job Job) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
	}()

	if err := r.sem.Acquire(r.root, 1); err != nil {
		r.logger.Warn().Err(err).Str("ticket", ticket.ID).Msg("download never started")
		return
	}
	defer r.sem.Release(1)
	if r.root.Err() != nil {
		return
	}

	// the timeout covers the script only, not time spent queued
	ctx, cancel := context.WithTimeout(r.root, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	output, err := r.run(ctx, r.cfg.Script, Args(job))
	log := r.logger.With().Str("ticket", ticket.ID).Dur("duration", time.Since(start)).Logger()
	if err != nil {
		log.Error().Err(err).Str("output", tail(string(output), 2000)).Msg("filing download failed")
		return
	}
	log.Info().Msg("filing download finished")
}

// Wait blocks until every submitted job has finished.
func (r *ScriptRunner) Wait() {
	r.wg.Wait()
}

// Close cancels queued and running jobs, then waits for them to exit.
// Later submissions fail.
func (r *ScriptRunner) Close() {
	r.cancel()
	r.wg.Wait()
}

// InFlight returns the number of jobs not yet finished.
func (r *ScriptRunner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

// Args renders job as command-line flags for the download script.
func Args(job Job) []string {
	args := []string{
		"--tickers", strings.Join(job.Tickers, ","),
		"--filing-types", strings.Join(job.FilingTypes, ","),
	}
	if !job.DateFrom.IsZero() {
		args = append(args, "--date-from", job.DateFrom.Format("2006-01-02"))
	}
	if !job.DateTo.IsZero() {
		args = append(args, "--date-to", job.DateTo.Format("2006-01-02"))
	}
	return args
}

func execScript(ctx context.Context, script string, args []string) ([]byte, error) {
	if script == "" {
		return nil, fmt.Errorf("no download script configured")
	}
	cmd := exec.CommandContext(ctx, script, args...)
	cmd.Env = os.Environ()
	return cmd.CombinedOutput()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

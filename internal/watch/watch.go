// Package watch runs the smoke suite on a cron schedule and serves the
// latest outcome as Prometheus metrics.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/apismoke/internal/metrics"
	"github.com/jmylchreest/apismoke/internal/suite"
)

// RunFunc executes one complete suite run.
type RunFunc func(ctx context.Context) (*suite.Outcome, error)

// Config holds watch mode settings.
type Config struct {
	// Schedule is a standard 5-field cron expression or a descriptor such as "@every 5m".
	Schedule string
	// MetricsAddress is the listen address for /metrics and /healthz. Empty disables the server.
	MetricsAddress string
	// ShutdownTimeout bounds how long Run waits for an in-flight run and the server on exit.
	ShutdownTimeout time.Duration
	// RunOnStart triggers a run immediately instead of waiting for the first tick.
	RunOnStart bool
}

// Watcher schedules runs and records their outcomes.
type Watcher struct {
	cfg      Config
	run      RunFunc
	bundle   *metrics.Bundle
	logger   *slog.Logger
	schedule cron.Schedule

	mu      sync.RWMutex
	last    *suite.Outcome
	lastErr error
	runs    int

	// OnOutcome, when set, is called after every completed run.
	OnOutcome func(ctx context.Context, outcome *suite.Outcome)
}

// New validates the schedule and creates a watcher. A nil bundle creates a
// fresh metrics registry.
func New(cfg Config, run RunFunc, bundle *metrics.Bundle, logger *slog.Logger) (*Watcher, error) {
	if run == nil {
		return nil, errors.New("run function is required")
	}
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", cfg.Schedule, err)
	}
	if bundle == nil {
		bundle = metrics.NewBundle()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		cfg:      cfg,
		run:      run,
		bundle:   bundle,
		logger:   logger,
		schedule: schedule,
	}, nil
}

// Next returns the next scheduled activation after t.
func (w *Watcher) Next(t time.Time) time.Time {
	return w.schedule.Next(t)
}

// RunOnce executes one run and records its outcome.
func (w *Watcher) RunOnce(ctx context.Context) {
	outcome, err := w.run(ctx)

	w.mu.Lock()
	w.runs++
	w.lastErr = err
	if err == nil {
		w.last = outcome
	}
	w.mu.Unlock()

	if err != nil {
		w.bundle.Collector.ObserveError()
		w.logger.Error("smoke run failed to start", slog.String("error", err.Error()))
		return
	}

	w.bundle.Collector.Observe(outcome)
	w.logger.Info("smoke run completed",
		slog.String("run_id", outcome.RunID),
		slog.Bool("success", outcome.Success),
		slog.Duration("duration", outcome.Duration()),
	)

	if w.OnOutcome != nil {
		w.OnOutcome(ctx, outcome)
	}
}

// Last returns the most recent successful-to-execute outcome, or nil.
func (w *Watcher) Last() *suite.Outcome {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Runs returns how many runs have been attempted.
func (w *Watcher) Runs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs
}

// Handler serves /metrics, /healthz and /last.
func (w *Watcher) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(w.bundle.Registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", w.handleHealth)
	r.Get("/last", w.handleLast)
	return r
}

func (w *Watcher) handleHealth(rw http.ResponseWriter, _ *http.Request) {
	w.mu.RLock()
	body := map[string]any{
		"status": "ok",
		"runs":   w.runs,
	}
	if w.last != nil {
		body["last_run_id"] = w.last.RunID
		body["last_success"] = w.last.Success
		body["last_finished_at"] = w.last.FinishedAt
	}
	if w.lastErr != nil {
		body["last_error"] = w.lastErr.Error()
	}
	w.mu.RUnlock()

	writeJSON(rw, http.StatusOK, body)
}

func (w *Watcher) handleLast(rw http.ResponseWriter, _ *http.Request) {
	last := w.Last()
	if last == nil {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "no completed run yet"})
		return
	}
	writeJSON(rw, http.StatusOK, last)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// Run schedules runs until ctx is cancelled, then waits for an in-flight run
// and stops the metrics server.
func (w *Watcher) Run(ctx context.Context) error {
	cronLogger := &slogCronLogger{logger: w.logger}
	c := cron.New(cron.WithLogger(cronLogger))

	// One wrapped job shared by the schedule and the start-up run so the
	// overlap guard covers both.
	job := cron.NewChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)).
		Then(cron.FuncJob(func() { w.RunOnce(ctx) }))
	c.Schedule(w.schedule, job)

	var srv *http.Server
	errChan := make(chan error, 1)
	if w.cfg.MetricsAddress != "" {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", w.cfg.MetricsAddress)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", w.cfg.MetricsAddress, err)
		}
		srv = &http.Server{Handler: w.Handler(), ReadHeaderTimeout: 10 * time.Second}
		w.logger.Info("metrics server listening", slog.String("address", ln.Addr().String()))
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("serving metrics: %w", err)
			}
		}()
	}

	w.logger.Info("watch started",
		slog.String("schedule", w.cfg.Schedule),
		slog.Time("next_run", w.Next(time.Now())),
	)

	var startup sync.WaitGroup
	c.Start()
	if w.cfg.RunOnStart {
		startup.Add(1)
		go func() {
			defer startup.Done()
			job.Run()
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errChan:
	}

	cronStopped := c.Stop()
	stopCtx, stopDone := context.WithCancel(context.Background())
	go func() {
		<-cronStopped.Done()
		startup.Wait()
		stopDone()
	}()
	shutdownCtx := context.Background()
	if w.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, w.cfg.ShutdownTimeout)
		defer cancel()
	}

	select {
	case <-stopCtx.Done():
	case <-shutdownCtx.Done():
		w.logger.Warn("in-flight run did not finish before shutdown timeout")
	}

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("shutting down metrics server: %w", err)
		}
	}

	w.logger.Info("watch stopped", slog.Int("runs", w.Runs()))
	return runErr
}

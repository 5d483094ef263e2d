// Package suite holds the ordered smoke checks run against the admin API and
// the entry point that wires a session and a runner around them.
package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/apismoke/internal/config"
	"github.com/jmylchreest/apismoke/internal/httpclient"
	"github.com/jmylchreest/apismoke/internal/observability"
	"github.com/jmylchreest/apismoke/internal/runner"
	"github.com/jmylchreest/apismoke/internal/session"
)

// ErrChecksFailed is returned by Execute callers when the summary verdict is a failure.
var ErrChecksFailed = errors.New("one or more checks failed")

// Check is one named step of the suite.
type Check struct {
	Name  string
	Title string
	Run   runner.CheckFunc
}

// Suite runs the checks in a fixed order over a single session.
type Suite struct {
	sess   *session.Session
	run    *runner.Runner
	opts   Options
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a suite. A nil logger uses slog.Default.
func New(sess *session.Session, run *runner.Runner, opts Options, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suite{
		sess:   sess,
		run:    run,
		opts:   opts,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Checks returns the checks in execution order. Login must precede every
// check that needs the bearer token.
func (s *Suite) Checks() []Check {
	return []Check{
		{Name: "CORS Configuration", Title: "🔍 Testing CORS Configuration...", Run: s.CheckCORS},
		{Name: "Admin Login", Title: "🔐 Testing Admin Login...", Run: s.CheckLogin},
		{Name: "GET Settings", Title: "📋 Testing GET Settings...", Run: s.CheckGetSettings},
		{Name: "PUT Settings", Title: "⚙️ Testing PUT Settings (Telegram Configuration)...", Run: s.CheckUpdateSettings},
		{Name: "Settings Persistence", Title: "💾 Testing Settings Persistence...", Run: s.CheckPersistence},
		{Name: "Other Endpoints", Title: "🔗 Testing Other Endpoints...", Run: s.CheckOtherEndpoints},
	}
}

// Run executes every check once, in order, and prints the summary. A failed
// check never stops the run. It returns the summary verdict.
func (s *Suite) Run(ctx context.Context) bool {
	s.run.Printf("🚀 Starting Backend API Tests...")
	s.run.Printf("Backend URL: %s", s.sess.BaseURL())
	s.run.Printf("API Base: %s", s.sess.URL(s.opts.APIPrefix))

	for _, c := range s.Checks() {
		s.run.Section(c.Title)
		passed := s.run.RunCheck(ctx, c.Name, c.Run)
		s.logger.Debug("check finished", slog.String("check", c.Name), slog.Bool("passed", passed))
	}

	return s.run.Summarize()
}

// Session returns the underlying session.
func (s *Suite) Session() *session.Session {
	return s.sess
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Outcome is the record of one complete run.
type Outcome struct {
	RunID      string                `json:"run_id" yaml:"run_id"`
	BaseURL    string                `json:"base_url" yaml:"base_url"`
	StartedAt  time.Time             `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time             `json:"finished_at" yaml:"finished_at"`
	Success    bool                  `json:"success" yaml:"success"`
	Stats      runner.Stats          `json:"stats" yaml:"stats"`
	Checks     []runner.CheckOutcome `json:"checks" yaml:"checks"`
	Results    []runner.TestResult   `json:"results" yaml:"results"`
}

// Duration returns the wall time of the run.
func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// ExecuteOptions tunes Execute beyond what configuration carries.
type ExecuteOptions struct {
	// Color enables ANSI colors in the console output.
	Color bool
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Execute runs the whole suite against the configured backend and writes the
// console report to out. The returned error covers setup failures only; a
// failed check is reported through Outcome.Success.
func Execute(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger, eo ExecuteOptions) (*Outcome, error) {
	if logger == nil {
		logger = slog.Default()
	}

	runID := ulid.Make().String()
	logger = observability.WithRunID(logger, runID)

	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.HTTP.Timeout
	if cfg.HTTP.UserAgent != "" {
		clientCfg.UserAgent = cfg.HTTP.UserAgent
	}
	clientCfg.Logger = observability.WithComponent(logger, "httpclient")
	clientCfg.Transport = eo.Transport

	client, err := httpclient.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}

	sess, err := session.New(cfg.Target.BaseURL, client, observability.WithComponent(logger, "session"))
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	run := runner.New(out, runner.WithColor(eo.Color), runner.WithLogger(logger))
	s := New(sess, run, OptionsFromConfig(cfg), logger)

	logger.Info("starting smoke run",
		slog.String("base_url", sess.BaseURL()),
		slog.Duration("timeout", client.Timeout()),
	)

	started := time.Now().UTC()
	success := s.Run(ctx)
	finished := time.Now().UTC()

	outcome := &Outcome{
		RunID:      runID,
		BaseURL:    sess.BaseURL(),
		StartedAt:  started,
		FinishedAt: finished,
		Success:    success,
		Stats:      run.Stats(),
		Checks:     run.Checks(),
		Results:    run.Results(),
	}

	logger.Info("smoke run finished",
		slog.Bool("success", success),
		slog.Int("checks_passed", outcome.Stats.ChecksPassed),
		slog.Int("checks", outcome.Stats.Checks),
		slog.Duration("duration", outcome.Duration()),
	)

	return outcome, nil
}

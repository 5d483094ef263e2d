// Package runner executes named checks in order, records their results and
// prints a human-readable report.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jwalton/go-supportscolor"
)

// ErrCheckPanicked wraps the value recovered from a panicking check.
var ErrCheckPanicked = errors.New("check panicked")

const (
	green = "\033[32m"
	red   = "\033[31m"
	bold  = "\033[1m"
	reset = "\033[0m"
)

// CheckFunc performs one check. Returning an error marks the check failed.
type CheckFunc func(ctx context.Context) (bool, error)

// TestResult is one recorded outcome. Results are never modified after Log appends them.
type TestResult struct {
	Name    string         `json:"name" yaml:"name"`
	Success bool           `json:"success" yaml:"success"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Elapsed time.Duration  `json:"elapsed" yaml:"elapsed"`
}

// CheckOutcome is the overall result of one RunCheck call.
type CheckOutcome struct {
	Name    string        `json:"name" yaml:"name"`
	Passed  bool          `json:"passed" yaml:"passed"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Stats summarizes a run.
type Stats struct {
	Checks        int `json:"checks" yaml:"checks"`
	ChecksPassed  int `json:"checks_passed" yaml:"checks_passed"`
	Results       int `json:"results" yaml:"results"`
	ResultsPassed int `json:"results_passed" yaml:"results_passed"`
}

// ChecksFailed returns the number of failed checks.
func (s Stats) ChecksFailed() int { return s.Checks - s.ChecksPassed }

// ResultsFailed returns the number of failed results.
func (s Stats) ResultsFailed() int { return s.Results - s.ResultsPassed }

// Option configures a Runner.
type Option func(*Runner)

// WithColor enables ANSI colored PASS/FAIL markers.
func WithColor(enabled bool) Option {
	return func(r *Runner) { r.color = enabled }
}

// WithLogger sets the structured logger. Results are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// checkState tracks the check currently executing.
type checkState struct {
	name     string
	start    time.Time
	failures int
}

// Runner owns the ordered result list of one run. It is not safe for concurrent use.
type Runner struct {
	out     io.Writer
	color   bool
	logger  *slog.Logger
	results []TestResult
	checks  []CheckOutcome
	current *checkState
}

// New creates a runner printing to out.
func New(out io.Writer, opts ...Option) *Runner {
	r := &Runner{
		out:    out,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ColorSupported reports whether stdout can render ANSI colors.
func ColorSupported() bool {
	return supportscolor.Stdout().SupportsColor
}

// RunCheck invokes fn and returns its verdict. A returned error or a panic is
// recorded as a failed result carrying the error text and never propagates.
// A check that fails without logging a failure gets one recorded under its
// own name, so the result list always reflects the outcome.
func (r *Runner) RunCheck(ctx context.Context, name string, fn CheckFunc) (passed bool) {
	state := &checkState{name: name, start: time.Now()}
	r.current = state

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%w: %v", ErrCheckPanicked, rec)
			r.logger.Error("check panicked", slog.String("check", name), slog.String("error", err.Error()))
			r.Log(name, false, err.Error(), nil)
			passed = false
		}
		if !passed && state.failures == 0 {
			r.Log(name, false, "Check failed", nil)
		}

		r.checks = append(r.checks, CheckOutcome{
			Name:    name,
			Passed:  passed,
			Elapsed: time.Since(state.start),
		})
		r.current = nil
	}()

	ok, err := fn(ctx)
	if err != nil {
		r.logger.Debug("check returned error", slog.String("check", name), slog.String("error", err.Error()))
		r.Log(name, false, err.Error(), nil)
		return false
	}
	return ok
}

// Log appends a result and prints it. Details are printed only on failure.
func (r *Runner) Log(name string, success bool, message string, details map[string]any) {
	result := TestResult{
		Name:    name,
		Success: success,
		Message: message,
		Details: details,
	}
	if r.current != nil {
		result.Elapsed = time.Since(r.current.start)
		if !success {
			r.current.failures++
		}
	}
	r.results = append(r.results, result)

	marker := r.paint(green, "✅ PASS")
	if !success {
		marker = r.paint(red, "❌ FAIL")
	}
	fmt.Fprintf(r.out, "%s %s: %s\n", marker, name, message)
	if !success && details != nil {
		fmt.Fprintf(r.out, "   Details: %s\n", formatDetails(details))
	}

	r.logger.Debug("result recorded",
		slog.String("name", name),
		slog.Bool("success", success),
		slog.String("message", message),
		slog.Duration("elapsed", result.Elapsed),
	)
}

// Section prints a blank line and a header announcing the next check.
func (r *Runner) Section(title string) {
	fmt.Fprintf(r.out, "\n%s\n", r.paint(bold, title))
}

// Printf writes a free-form line to the report output.
func (r *Runner) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Summarize prints check and result counts and reports whether every check
// passed and every recorded result succeeded.
func (r *Runner) Summarize() bool {
	stats := r.Stats()

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	fmt.Fprintln(r.out, "📊 Test Summary:")
	fmt.Fprintf(r.out, "   Passed: %d/%d\n", stats.ChecksPassed, stats.Checks)
	fmt.Fprintf(r.out, "   Failed: %d/%d\n", stats.ChecksFailed(), stats.Checks)
	fmt.Fprintf(r.out, "   Results: %d recorded, %d failed\n", stats.Results, stats.ResultsFailed())

	ok := stats.ChecksFailed() == 0 && stats.ResultsFailed() == 0
	if ok {
		fmt.Fprintln(r.out, r.paint(green, "🎉 All tests passed!"))
	} else {
		fmt.Fprintln(r.out, r.paint(red, "⚠️  Some tests failed. Check the details above."))
	}
	return ok
}

// Stats counts checks and results recorded so far.
func (r *Runner) Stats() Stats {
	var s Stats
	s.Checks = len(r.checks)
	for _, c := range r.checks {
		if c.Passed {
			s.ChecksPassed++
		}
	}
	s.Results = len(r.results)
	for _, res := range r.results {
		if res.Success {
			s.ResultsPassed++
		}
	}
	return s
}

// Results returns a copy of the recorded results in execution order.
func (r *Runner) Results() []TestResult {
	return slices.Clone(r.results)
}

// Checks returns a copy of the per-check outcomes in execution order.
func (r *Runner) Checks() []CheckOutcome {
	return slices.Clone(r.checks)
}

func (r *Runner) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + reset
}

func formatDetails(details map[string]any) string {
	b, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprintf("%v", details)
	}
	return string(b)
}

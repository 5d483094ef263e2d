package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/process"
)

// HealthHandler reports liveness and process resource usage.
type HealthHandler struct {
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/health",
		Summary:     "Health check",
		Description: "Returns liveness, uptime and process memory usage",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// HealthInput is the input for the health endpoint.
type HealthInput struct{}

// HealthResponse is the health document.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	RSSBytes      uint64  `json:"rss_bytes,omitempty"`
	Load1         float64 `json:"load_1,omitempty"`
}

// HealthOutput is the output for the health endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health document. Resource figures are omitted when
// the platform cannot report them.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	uptime := time.Since(h.startTime)

	resp := &HealthOutput{Body: HealthResponse{
		Status:        "ok",
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil { //nolint:gosec // pid fits in int32
		if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
			resp.Body.RSSBytes = mem.RSS
		}
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		resp.Body.Load1 = avg.Load1
	}

	return resp, nil
}

// Package handlers provides the API operations of the reference backend.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// RootHandler serves the API root.
type RootHandler struct {
	version string
}

// NewRootHandler creates a new root handler.
func NewRootHandler(version string) *RootHandler {
	return &RootHandler{version: version}
}

// Register registers the root route with the API.
func (h *RootHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getRoot",
		Method:      "GET",
		Path:        "/api/",
		Summary:     "API root",
		Description: "Returns the API name and version",
		Tags:        []string{"System"},
	}, h.GetRoot)
}

// RootInput is the input for the root endpoint.
type RootInput struct{}

// RootOutput is the output for the root endpoint.
type RootOutput struct {
	Body struct {
		Message string `json:"message"`
		Version string `json:"version"`
	}
}

// GetRoot returns the API name and version.
func (h *RootHandler) GetRoot(_ context.Context, _ *RootInput) (*RootOutput, error) {
	resp := &RootOutput{}
	resp.Body.Message = "Trading Platform API"
	resp.Body.Version = h.version
	return resp, nil
}

package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
)

// AuthHandler handles admin login and profile endpoints.
type AuthHandler struct {
	store  *Store
	logger *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(store *Store, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{store: store, logger: logger}
}

// Register registers the auth routes with the API.
func (h *AuthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "adminLogin",
		Method:      "POST",
		Path:        "/api/admin/auth/login",
		Summary:     "Admin login",
		Description: "Exchanges admin credentials for a bearer token pair",
		Tags:        []string{"Auth"},
	}, h.Login)

	huma.Register(api, huma.Operation{
		OperationID: "adminProfile",
		Method:      "GET",
		Path:        "/api/admin/auth/profile",
		Summary:     "Admin profile",
		Description: "Returns the authenticated admin",
		Tags:        []string{"Auth"},
	}, h.Profile)
}

// LoginInput is the input for admin login.
type LoginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"1" doc:"Admin email address"`
		Password string `json:"password" doc:"Admin password"`
	}
}

// LoginOutput is the output for admin login.
type LoginOutput struct {
	Body struct {
		TokenPair
		User Admin `json:"user"`
	}
}

// Login validates the credentials and issues tokens.
func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	pair, err := h.store.Authenticate(input.Body.Email, input.Body.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "admin login rejected", slog.String("email", input.Body.Email))
		return nil, huma.Error401Unauthorized("Invalid email or password")
	}

	admin, err := h.store.Lookup(pair.AccessToken)
	if err != nil {
		return nil, huma.Error500InternalServerError("issued token could not be resolved", err)
	}

	h.logger.InfoContext(ctx, "admin logged in", slog.String("email", admin.Email))

	resp := &LoginOutput{}
	resp.Body.TokenPair = pair
	resp.Body.User = admin
	return resp, nil
}

// AuthorizedInput carries the bearer credential of an authenticated request.
type AuthorizedInput struct {
	Authorization string `header:"Authorization" doc:"Bearer access token"`
}

// ProfileOutput is the output for the profile endpoint.
type ProfileOutput struct {
	Body Admin
}

// Profile returns the authenticated admin.
func (h *AuthHandler) Profile(_ context.Context, input *AuthorizedInput) (*ProfileOutput, error) {
	admin, err := h.store.authenticate(input.Authorization)
	if err != nil {
		return nil, huma.Error401Unauthorized("Not authenticated")
	}
	return &ProfileOutput{Body: admin}, nil
}

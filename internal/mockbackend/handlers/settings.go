package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
)

// SettingsHandler handles the admin settings endpoints.
type SettingsHandler struct {
	store  *Store
	logger *slog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(store *Store, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{store: store, logger: logger}
}

// Register registers the settings routes with the API.
func (h *SettingsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSettings",
		Method:      "GET",
		Path:        "/api/admin/settings",
		Summary:     "Get system settings",
		Description: "Returns the current system settings",
		Tags:        []string{"Settings"},
	}, h.GetSettings)

	huma.Register(api, huma.Operation{
		OperationID: "updateSettings",
		Method:      "PUT",
		Path:        "/api/admin/settings",
		Summary:     "Update system settings",
		Description: "Updates the supplied settings fields and leaves the rest unchanged",
		Tags:        []string{"Settings"},
	}, h.UpdateSettings)
}

// GetSettingsOutput is the output for getting settings.
type GetSettingsOutput struct {
	Body Settings
}

// GetSettings returns the current settings.
func (h *SettingsHandler) GetSettings(_ context.Context, input *AuthorizedInput) (*GetSettingsOutput, error) {
	if _, err := h.store.authenticate(input.Authorization); err != nil {
		return nil, huma.Error401Unauthorized("Not authenticated")
	}
	return &GetSettingsOutput{Body: h.store.Settings()}, nil
}

// UpdateSettingsInput is the input for updating settings.
type UpdateSettingsInput struct {
	Authorization string `header:"Authorization" doc:"Bearer access token"`
	Body          SettingsPatch
}

// UpdateSettingsOutput is the output for updating settings.
type UpdateSettingsOutput struct {
	Body struct {
		Message  string   `json:"message"`
		Settings Settings `json:"settings"`
	}
}

// UpdateSettings applies a partial settings update.
func (h *SettingsHandler) UpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*UpdateSettingsOutput, error) {
	admin, err := h.store.authenticate(input.Authorization)
	if err != nil {
		return nil, huma.Error401Unauthorized("Not authenticated")
	}

	updated := h.store.UpdateSettings(input.Body)
	h.logger.InfoContext(ctx, "settings updated",
		slog.String("by", admin.Email),
		slog.Bool("telegram_notifications_enabled", updated.TelegramNotificationsEnabled),
	)

	resp := &UpdateSettingsOutput{}
	resp.Body.Message = "Settings updated successfully"
	resp.Body.Settings = updated
	return resp, nil
}

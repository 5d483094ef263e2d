package suite

import (
	"net/http"
	"time"

	"github.com/jmylchreest/apismoke/internal/config"
)

// Fixture is the settings payload written by the update check and expected back by the persistence check.
type Fixture struct {
	TelegramBotToken             string `json:"telegram_bot_token" yaml:"telegram_bot_token"`
	TelegramAdminChatID          string `json:"telegram_admin_chat_id" yaml:"telegram_admin_chat_id"`
	TelegramNotificationsEnabled bool   `json:"telegram_notifications_enabled" yaml:"telegram_notifications_enabled"`
}

// DefaultFixture returns the stock fixture.
func DefaultFixture() Fixture {
	return Fixture{
		TelegramBotToken:             "test_token_123",
		TelegramAdminChatID:          "123456789",
		TelegramNotificationsEnabled: true,
	}
}

// Map returns the fixture keyed by JSON field name.
func (f Fixture) Map() map[string]any {
	return map[string]any{
		"telegram_bot_token":             f.TelegramBotToken,
		"telegram_admin_chat_id":         f.TelegramAdminChatID,
		"telegram_notifications_enabled": f.TelegramNotificationsEnabled,
	}
}

// Endpoint is one reachability probe.
type Endpoint struct {
	Method      string `json:"method" yaml:"method"`
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEndpoints returns the stock reachability probes.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{Method: http.MethodGet, Path: "/api/", Description: "Root endpoint"},
		{Method: http.MethodGet, Path: "/api/admin/auth/profile", Description: "Admin profile"},
	}
}

const defaultPersistenceDelay = time.Second

// Options controls what the checks send and expect.
type Options struct {
	APIPrefix        string
	Origin           string
	Email            string
	Password         string
	Fixture          Fixture
	Endpoints        []Endpoint
	PersistenceDelay time.Duration
	BodySnippet      int
}

// DefaultOptions returns the stock options.
func DefaultOptions() Options {
	return Options{
		APIPrefix:        "/api",
		Origin:           "http://localhost:3000",
		Email:            "admin@trading.com",
		Password:         "Admin@123456",
		Fixture:          DefaultFixture(),
		Endpoints:        DefaultEndpoints(),
		PersistenceDelay: defaultPersistenceDelay,
		BodySnippet:      200,
	}
}

// OptionsFromConfig builds options from loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	endpoints := make([]Endpoint, 0, len(cfg.Suite.Endpoints))
	for _, ep := range cfg.Suite.Endpoints {
		endpoints = append(endpoints, Endpoint{Method: ep.Method, Path: ep.Path, Description: ep.Description})
	}

	return Options{
		APIPrefix: cfg.Target.APIPrefix,
		Origin:    cfg.Target.Origin,
		Email:     cfg.Credentials.Email,
		Password:  cfg.Credentials.Password,
		Fixture: Fixture{
			TelegramBotToken:             cfg.Fixture.TelegramBotToken,
			TelegramAdminChatID:          cfg.Fixture.TelegramAdminChatID,
			TelegramNotificationsEnabled: cfg.Fixture.TelegramNotificationsEnabled,
		},
		Endpoints:        endpoints,
		PersistenceDelay: cfg.Suite.PersistenceDelay,
		BodySnippet:      cfg.Suite.BodySnippet,
	}
}

package handlers

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Token lifetimes.
const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
	TokenTypeBearer = "bearer"
)

// Admin is the seeded administrator account.
type Admin struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Settings is the system settings document.
type Settings struct {
	SiteName                     string    `json:"site_name"`
	MaintenanceMode              bool      `json:"maintenance_mode"`
	TelegramBotToken             string    `json:"telegram_bot_token"`
	TelegramAdminChatID          string    `json:"telegram_admin_chat_id"`
	TelegramNotificationsEnabled bool      `json:"telegram_notifications_enabled"`
	UpdatedAt                    time.Time `json:"updated_at"`
}

// SettingsPatch carries the fields of a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	_                            struct{} `json:"-" additionalProperties:"true"`
	SiteName                     *string  `json:"site_name,omitempty"`
	MaintenanceMode              *bool    `json:"maintenance_mode,omitempty"`
	TelegramBotToken             *string  `json:"telegram_bot_token,omitempty"`
	TelegramAdminChatID          *string  `json:"telegram_admin_chat_id,omitempty"`
	TelegramNotificationsEnabled *bool    `json:"telegram_notifications_enabled,omitempty"`
}

// TokenPair is issued on login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type issuedToken struct {
	email   string
	expires time.Time
}

// Store holds the backend's in-memory state. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	admin    Admin
	password string
	tokens   map[string]issuedToken
	settings Settings
	now      func() time.Time
}

// NewStore creates a store seeded with one super admin.
func NewStore(email, password string) *Store {
	s := &Store{
		admin: Admin{
			ID:    uuid.NewString(),
			Email: email,
			Name:  "Administrator",
			Role:  "super_admin",
		},
		password: password,
		tokens:   make(map[string]issuedToken),
		now:      time.Now,
	}
	s.settings = Settings{
		SiteName:  "Trading Platform",
		UpdatedAt: s.now().UTC(),
	}
	return s
}

// Authenticate checks the credentials and issues a new token pair.
func (s *Store) Authenticate(email, password string) (TokenPair, error) {
	emailOK := strings.EqualFold(strings.TrimSpace(email), s.admin.Email)
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !emailOK || !passwordOK {
		return TokenPair{}, ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	access := uuid.NewString()
	refresh := uuid.NewString()
	s.tokens[access] = issuedToken{email: s.admin.Email, expires: now.Add(AccessTokenTTL)}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
	}, nil
}

// Lookup resolves an access token to its admin.
func (s *Store) Lookup(token string) (Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issued, ok := s.tokens[token]
	if !ok || !s.now().Before(issued.expires) {
		return Admin{}, ErrInvalidToken
	}
	return s.admin, nil
}

// Settings returns a snapshot of the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings applies patch and returns the resulting settings.
func (s *Store) UpdateSettings(patch SettingsPatch) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.SiteName != nil {
		s.settings.SiteName = *patch.SiteName
	}
	if patch.MaintenanceMode != nil {
		s.settings.MaintenanceMode = *patch.MaintenanceMode
	}
	if patch.TelegramBotToken != nil {
		s.settings.TelegramBotToken = *patch.TelegramBotToken
	}
	if patch.TelegramAdminChatID != nil {
		s.settings.TelegramAdminChatID = *patch.TelegramAdminChatID
	}
	if patch.TelegramNotificationsEnabled != nil {
		s.settings.TelegramNotificationsEnabled = *patch.TelegramNotificationsEnabled
	}
	s.settings.UpdatedAt = s.now().UTC()

	return s.settings
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authenticate resolves the Authorization header to an admin.
func (s *Store) authenticate(header string) (Admin, error) {
	token, ok := bearerToken(header)
	if !ok {
		return Admin{}, ErrInvalidToken
	}
	return s.Lookup(token)
}

package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "admin@trading.com"
	testPassword = "Admin@123456"
)

func login(t *testing.T, store *Store) TokenPair {
	t.Helper()
	pair, err := store.Authenticate(testEmail, testPassword)
	require.NoError(t, err)
	return pair
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, status, se.GetStatus())
}

func TestStore_Authenticate(t *testing.T) {
	store := NewStore(testEmail, testPassword)

	t.Run("valid credentials", func(t *testing.T) {
		pair := login(t, store)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
		assert.Equal(t, TokenTypeBearer, pair.TokenType)
		assert.Equal(t, 86400, pair.ExpiresIn)
	})

	t.Run("email is case insensitive", func(t *testing.T) {
		_, err := store.Authenticate("ADMIN@trading.com", testPassword)
		assert.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := store.Authenticate(testEmail, "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := store.Authenticate("someone@else.com", testPassword)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestStore_Lookup(t *testing.T) {
	store := NewStore(testEmail, testPassword)
	pair := login(t, store)

	admin, err := store.Lookup(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testEmail, admin.Email)
	assert.Equal(t, "super_admin", admin.Role)

	_, err = store.Lookup(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = store.Lookup("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStore_TokenExpiry(t *testing.T) {
	store := NewStore(testEmail, testPassword)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	pair := login(t, store)

	now = now.Add(AccessTokenTTL + time.Second)
	_, err := store.Lookup(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStore_UpdateSettings(t *testing.T) {
	store := NewStore(testEmail, testPassword)
	before := store.Settings()

	token := "test_token_123"
	chat := "123456789"
	enabled := true
	updated := store.UpdateSettings(SettingsPatch{
		TelegramBotToken:             &token,
		TelegramAdminChatID:          &chat,
		TelegramNotificationsEnabled: &enabled,
	})

	assert.Equal(t, "test_token_123", updated.TelegramBotToken)
	assert.Equal(t, "123456789", updated.TelegramAdminChatID)
	assert.True(t, updated.TelegramNotificationsEnabled)
	assert.Equal(t, before.SiteName, updated.SiteName)
	assert.Equal(t, updated, store.Settings())
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := bearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	store := NewStore(testEmail, testPassword)
	h := NewAuthHandler(store, nil)

	input := &LoginInput{}
	input.Body.Email = testEmail
	input.Body.Password = testPassword

	out, err := h.Login(context.Background(), input)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Body.AccessToken)
	assert.Equal(t, testEmail, out.Body.User.Email)

	input.Body.Password = "wrong"
	_, err = h.Login(context.Background(), input)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAuthHandler_Profile(t *testing.T) {
	store := NewStore(testEmail, testPassword)
	h := NewAuthHandler(store, nil)

	_, err := h.Profile(context.Background(), &AuthorizedInput{})
	requireStatus(t, err, http.StatusUnauthorized)

	pair := login(t, store)
	out, err := h.Profile(context.Background(), &AuthorizedInput{Authorization: "Bearer " + pair.AccessToken})
	require.NoError(t, err)
	assert.Equal(t, testEmail, out.Body.Email)
}

func TestSettingsHandler(t *testing.T) {
	store := NewStore(testEmail, testPassword)
	h := NewSettingsHandler(store, nil)
	auth := "Bearer " + login(t, store).AccessToken

	t.Run("get requires auth", func(t *testing.T) {
		_, err := h.GetSettings(context.Background(), &AuthorizedInput{Authorization: "Bearer bogus"})
		requireStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("put requires auth", func(t *testing.T) {
		_, err := h.UpdateSettings(context.Background(), &UpdateSettingsInput{})
		requireStatus(t, err, http.StatusUnauthorized)
	})

	t.Run("put then get", func(t *testing.T) {
		chat := "42"
		out, err := h.UpdateSettings(context.Background(), &UpdateSettingsInput{
			Authorization: auth,
			Body:          SettingsPatch{TelegramAdminChatID: &chat},
		})
		require.NoError(t, err)
		assert.Equal(t, "Settings updated successfully", out.Body.Message)
		assert.Equal(t, "42", out.Body.Settings.TelegramAdminChatID)

		got, err := h.GetSettings(context.Background(), &AuthorizedInput{Authorization: auth})
		require.NoError(t, err)
		assert.Equal(t, "42", got.Body.TelegramAdminChatID)
	})
}

func TestRootHandler(t *testing.T) {
	out, err := NewRootHandler("1.2.3").GetRoot(context.Background(), &RootInput{})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.NotEmpty(t, out.Body.Message)
}

func TestHealthHandler(t *testing.T) {
	out, err := NewHealthHandler("1.2.3").GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Body.Status)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.Positive(t, out.Body.Goroutines)
}

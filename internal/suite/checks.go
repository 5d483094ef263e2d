package suite

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// Result names. Check-level names are in Checks.
const (
	resultCORSHeaders = "CORS Headers"
	resultCORSError   = "CORS Configuration"
	resultLogin       = "Admin Login"
	resultGetSettings = "GET Settings"
	resultPutSettings = "PUT Settings"
	resultPersistence = "Settings Persistence"
)

// CORS response headers inspected by the CORS check.
var corsHeaders = []string{
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Methods",
	"Access-Control-Allow-Headers",
	"Access-Control-Allow-Credentials",
}

// CheckCORS sends a preflight to the API root and passes when at least one
// CORS response header is present.
func (s *Suite) CheckCORS(ctx context.Context) (bool, error) {
	resp, err := s.sess.Do(ctx, http.MethodOptions, s.apiPath("/"), nil, map[string]string{
		"Origin":                         s.opts.Origin,
		"Access-Control-Request-Method":  http.MethodGet,
		"Access-Control-Request-Headers": "Content-Type,Authorization",
	})
	if err != nil {
		s.run.Log(resultCORSError, false, fmt.Sprintf("Failed to test CORS: %v", err), nil)
		return false, nil
	}

	found := make(map[string]any, len(corsHeaders))
	present := false
	for _, h := range corsHeaders {
		v := resp.Header.Get(h)
		found[h] = v
		if v != "" {
			present = true
		}
	}
	details := map[string]any{"headers": found, "status_code": resp.StatusCode}

	if !present {
		s.run.Log(resultCORSHeaders, false, "CORS headers missing or misconfigured", details)
		return false, nil
	}
	s.run.Log(resultCORSHeaders, true, "CORS headers are properly configured", details)
	return true, nil
}

// CheckLogin posts the admin credentials. On success the access token becomes
// the session's bearer credential for every later request.
func (s *Suite) CheckLogin(ctx context.Context) (bool, error) {
	resp, err := s.sess.Do(ctx, http.MethodPost, s.apiPath("/admin/auth/login"), map[string]string{
		"email":    s.opts.Email,
		"password": s.opts.Password,
	}, nil)
	if err != nil {
		s.run.Log(resultLogin, false, fmt.Sprintf("Login request failed: %v", err), nil)
		return false, nil
	}

	if resp.StatusCode != http.StatusOK {
		s.run.Log(resultLogin, false, fmt.Sprintf("Login failed with status %d", resp.StatusCode), map[string]any{
			"response":    string(resp.Body),
			"status_code": resp.StatusCode,
		})
		return false, nil
	}

	body := resp.JSON()
	token := body.Get("access_token")
	if !token.Exists() {
		s.run.Log(resultLogin, false, "Login response missing access token", map[string]any{
			"response": resp.Object(),
		})
		return false, nil
	}

	s.sess.SetBearer(token.String())
	s.logger.Debug("bearer token stored", slog.String("email", s.opts.Email))

	s.run.Log(resultLogin, true, "Successfully logged in as admin", map[string]any{
		"token_type":  body.Get("token_type").Value(),
		"has_refresh": body.Get("refresh_token").Exists(),
	})
	return true, nil
}

// GetSettings fetches the settings document. It returns the decoded body, or
// an empty map when the request failed or the body is not an object.
func (s *Suite) GetSettings(ctx context.Context) (map[string]any, bool) {
	resp, err := s.sess.Do(ctx, http.MethodGet, s.apiPath("/admin/settings"), nil, nil)
	if err != nil {
		s.run.Log(resultGetSettings, false, fmt.Sprintf("Settings request failed: %v", err), nil)
		return map[string]any{}, false
	}

	if resp.StatusCode != http.StatusOK {
		s.run.Log(resultGetSettings, false, fmt.Sprintf("Failed to get settings with status %d", resp.StatusCode), map[string]any{
			"response":    string(resp.Body),
			"status_code": resp.StatusCode,
		})
		return map[string]any{}, false
	}

	settings := resp.Object()
	var keys any = "non-dict response"
	if resp.JSON().IsObject() {
		names := make([]string, 0, len(settings))
		for k := range settings {
			names = append(names, k)
		}
		slices.Sort(names)
		keys = names
	}

	s.run.Log(resultGetSettings, true, "Successfully retrieved system settings", map[string]any{
		"settings_keys": keys,
	})
	return settings, true
}

// CheckGetSettings passes when the settings document is served with status 200.
func (s *Suite) CheckGetSettings(ctx context.Context) (bool, error) {
	_, ok := s.GetSettings(ctx)
	return ok, nil
}

// CheckUpdateSettings writes the fixture to the settings resource.
func (s *Suite) CheckUpdateSettings(ctx context.Context) (bool, error) {
	fixture := s.opts.Fixture
	resp, err := s.sess.Do(ctx, http.MethodPut, s.apiPath("/admin/settings"), fixture, nil)
	if err != nil {
		s.run.Log(resultPutSettings, false, fmt.Sprintf("Settings update failed: %v", err), nil)
		return false, nil
	}

	if resp.StatusCode != http.StatusOK {
		s.run.Log(resultPutSettings, false, fmt.Sprintf("Failed to update settings with status %d", resp.StatusCode), map[string]any{
			"response":    string(resp.Body),
			"status_code": resp.StatusCode,
			"test_data":   fixture.Map(),
		})
		return false, nil
	}

	s.run.Log(resultPutSettings, true, "Successfully updated Telegram settings", map[string]any{
		"response":  resp.Object(),
		"test_data": fixture.Map(),
	})
	return true, nil
}

// CheckPersistence waits for the configured delay, reads the settings back
// and compares every fixture field by type and value.
func (s *Suite) CheckPersistence(ctx context.Context) (bool, error) {
	if err := s.sleep(ctx, s.opts.PersistenceDelay); err != nil {
		s.run.Log(resultPersistence, false, fmt.Sprintf("Settings persistence test failed: %v", err), nil)
		return false, nil
	}

	resp, err := s.sess.Do(ctx, http.MethodGet, s.apiPath("/admin/settings"), nil, nil)
	if err != nil {
		s.run.Log(resultPersistence, false, fmt.Sprintf("Settings persistence test failed: %v", err), nil)
		return false, nil
	}

	if resp.StatusCode != http.StatusOK {
		s.run.Log(resultPersistence, false,
			fmt.Sprintf("Failed to retrieve settings for verification with status %d", resp.StatusCode),
			map[string]any{"response": string(resp.Body)},
		)
		return false, nil
	}

	body := resp.JSON()
	token := body.Get("telegram_bot_token")
	chatID := body.Get("telegram_admin_chat_id")
	enabled := body.Get("telegram_notifications_enabled")

	want := s.opts.Fixture
	match := stringEquals(token, want.TelegramBotToken) &&
		stringEquals(chatID, want.TelegramAdminChatID) &&
		boolEquals(enabled, want.TelegramNotificationsEnabled)

	if !match {
		s.run.Log(resultPersistence, false, "Telegram settings were not saved correctly", map[string]any{
			"expected": want.Map(),
			"actual": map[string]any{
				"telegram_bot_token":             token.Value(),
				"telegram_admin_chat_id":         chatID.Value(),
				"telegram_notifications_enabled": enabled.Value(),
			},
		})
		return false, nil
	}

	s.run.Log(resultPersistence, true, "Telegram settings were saved and retrieved correctly", map[string]any{
		"saved_token":         token.Value(),
		"saved_chat_id":       chatID.Value(),
		"saved_notifications": enabled.Value(),
	})
	return true, nil
}

// CheckOtherEndpoints probes every configured endpoint and records one result
// per endpoint. 401 counts as reachable.
func (s *Suite) CheckOtherEndpoints(ctx context.Context) (bool, error) {
	allPassed := true

	for _, ep := range s.opts.Endpoints {
		name := "Endpoint " + ep.Path
		method := strings.ToUpper(ep.Method)

		resp, err := s.sess.Do(ctx, method, ep.Path, nil, nil)
		if err != nil {
			s.run.Log(name, false, fmt.Sprintf("Failed to test %s: %v", ep.Description, err), nil)
			allPassed = false
			continue
		}

		if !Reachable(resp.StatusCode) {
			s.run.Log(name, false, ep.Description+" returned unexpected status", map[string]any{
				"status_code": resp.StatusCode,
				"response":    resp.Snippet(s.opts.BodySnippet),
			})
			allPassed = false
			continue
		}

		s.run.Log(name, true, ep.Description+" is accessible", map[string]any{
			"status_code": resp.StatusCode,
			"method":      method,
		})
	}

	return allPassed, nil
}

// Reachable reports whether a reachability probe status counts as a pass.
func Reachable(status int) bool {
	return status < http.StatusBadRequest || status == http.StatusUnauthorized
}

func stringEquals(r gjson.Result, want string) bool {
	return r.Type == gjson.String && r.Str == want
}

func boolEquals(r gjson.Result, want bool) bool {
	return r.IsBool() && r.Bool() == want
}

// apiPath joins p onto the API prefix.
func (s *Suite) apiPath(p string) string {
	return strings.TrimSuffix(s.opts.APIPrefix, "/") + "/" + strings.TrimPrefix(p, "/")
}

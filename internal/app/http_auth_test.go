package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dailybread/api/internal/auth"
	"dailybread/api/internal/authpw"
	"dailybread/api/internal/store"
)

// fakeProfiles is an in-memory authpw.ProfileStore.
type fakeProfiles struct {
	byID    map[string]store.Profile
	byEmail map[string]store.Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		byID:    map[string]store.Profile{},
		byEmail: map[string]store.Profile{},
	}
}

func (f *fakeProfiles) GetProfileByEmail(_ context.Context, email string) (store.Profile, error) {
	profile, ok := f.byEmail[email]
	if !ok {
		return store.Profile{}, sql.ErrNoRows
	}
	return profile, nil
}

func (f *fakeProfiles) GetProfileByID(_ context.Context, id string) (store.Profile, error) {
	profile, ok := f.byID[id]
	if !ok {
		return store.Profile{}, sql.ErrNoRows
	}
	return profile, nil
}

func (f *fakeProfiles) CreateProfile(_ context.Context, profile store.Profile) error {
	f.byID[profile.ID] = profile
	f.byEmail[profile.Email] = profile
	return nil
}

func (f *fakeProfiles) UpdateProfilePassword(_ context.Context, userID, passwordHash string) error {
	profile := f.byID[userID]
	profile.PasswordHash = passwordHash
	f.byID[userID] = profile
	f.byEmail[profile.Email] = profile
	return nil
}

func (f *fakeProfiles) CreatePasswordReset(context.Context, string, string, time.Time) error {
	return nil
}

func (f *fakeProfiles) GetPasswordReset(context.Context, string) (string, error) {
	return "", sql.ErrNoRows
}

func (f *fakeProfiles) MarkPasswordResetUsed(context.Context, string) error {
	return nil
}

func newAuthServer() *HTTPServer {
	profiles := newFakeProfiles()
	svc := newTestService(&fakeStore{
		getProfileByIDFn: profiles.GetProfileByID,
	}, nil)
	svc.accounts = authpw.NewService(profiles)
	return NewHTTPServer(svc, "*")
}

func postJSON(t *testing.T, server *HTTPServer, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestSignUpAndSignInFlow(t *testing.T) {
	server := newAuthServer()

	rr := postJSON(t, server, "/api/auth/signup", `{"email":"grace@example.com","password":"bible-365!","nickname":"은혜"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if token, _ := payload["token"].(string); token == "" {
		t.Fatalf("expected token in signup response")
	}
	if refresh, _ := payload["refreshToken"].(string); refresh == "" {
		t.Fatalf("expected refreshToken in signup response")
	}
	if payload["nickname"] != "은혜" {
		t.Fatalf("expected nickname 은혜, got %v", payload["nickname"])
	}

	rr = postJSON(t, server, "/api/auth/signin", `{"email":"grace@example.com","password":"bible-365!"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = postJSON(t, server, "/api/auth/signin", `{"email":"grace@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for wrong password, got %d", rr.Code)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	server := newAuthServer()

	rr := postJSON(t, server, "/api/auth/signup", `{"email":"grace@example.com","password":"bible-365!","nickname":"은혜"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	rr = postJSON(t, server, "/api/auth/signup", `{"email":"grace@example.com","password":"bible-365!","nickname":"다른이름"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for duplicate email, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", payload["code"])
	}
}

func TestRefreshEndpointRotatesSession(t *testing.T) {
	server := newAuthServer()

	rr := postJSON(t, server, "/api/auth/signup", `{"email":"grace@example.com","password":"bible-365!","nickname":"은혜"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d %s", rr.Code, rr.Body.String())
	}
	var signup map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &signup); err != nil {
		t.Fatalf("parse signup: %v", err)
	}
	refreshToken, _ := signup["refreshToken"].(string)

	rr = postJSON(t, server, "/api/session/refresh", `{"refreshToken":"`+refreshToken+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	// The rotated-out token is dead.
	rr = postJSON(t, server, "/api/session/refresh", `{"refreshToken":"`+refreshToken+`"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for reused refresh token, got %d", rr.Code)
	}
}

func TestSessionEndpointIsSoft(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}, nil), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", payload["authenticated"])
	}
}

func TestProtectedRouteWithoutBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}, nil), "*")
	req := httptest.NewRequest(http.MethodGet, "/api/readings", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	assertUnauthorizedCode(t, rr)
}

func TestProtectedRouteWithExpiredBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}, nil), "*")

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "usr_1",
		Name: "은혜",
		JTI:  "jti_expired",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/readings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	assertUnauthorizedCode(t, rr)
}

func assertUnauthorizedCode(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected code UNAUTHORIZED, got %v", payload["code"])
	}
}

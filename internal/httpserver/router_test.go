package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"chatserver/internal/config"
	"chatserver/internal/metrics"
	"chatserver/internal/security"
	"chatserver/internal/store/sqlite"
	"chatserver/internal/ws"
)

type apiFixture struct {
	server *httptest.Server
	db     *sql.DB
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		AppName:             "chatserver",
		JWTSecret:           "test-secret",
		AccessTokenMinutes:  60,
		EventTimeout:        5 * time.Second,
		MessageHistoryLimit: 200,
	}
	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	m := metrics.New(prometheus.NewRegistry())
	hub := ws.NewHub(zap.NewNop(), m)

	handler := NewRouter(cfg, db, hub, tokenSvc, hasher, zap.NewNop(), m)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &apiFixture{server: server, db: db}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var parsed map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp, parsed
}

func (f *apiFixture) register(t *testing.T, username string) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": username,
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAuthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	token := f.register(t, "alice")

	t.Run("DuplicateUsername", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
			"username": "alice", "password": "other",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("LoginWrongPassword", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
			"username": "alice", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Me", func(t *testing.T) {
		resp, body := f.do(t, http.MethodGet, "/api/auth/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "alice", body["username"])
	})

	t.Run("MeWithoutToken", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		expired := security.NewTokenService("test-secret", -time.Minute)
		tok, err := expired.CreateForUser("alice")
		require.NoError(t, err)
		resp, _ := f.do(t, http.MethodGet, "/api/auth/me", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGroupEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	aliceToken := f.register(t, "alice")
	bobToken := f.register(t, "bob")

	resp, body := f.do(t, http.MethodPost, "/api/groups", aliceToken, map[string]any{
		"name": "Team",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	groupID := int64(body["id"].(float64))

	// bob's id is 2: registered second
	memberPath := fmt.Sprintf("/api/groups/%d/members", groupID)
	resp, _ = f.do(t, http.MethodPost, memberPath, aliceToken, map[string]any{"user_id": 2})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	t.Run("DuplicateMemberConflicts", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, memberPath, aliceToken, map[string]any{"user_id": 2})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("NonCreatorCannotRemove", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodDelete, fmt.Sprintf("/api/groups/%d/members/1", groupID), bobToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("DetailRequiresMembership", func(t *testing.T) {
		carolToken := f.register(t, "carol")
		resp, _ := f.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d", groupID), carolToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("DetailListsMembers", func(t *testing.T) {
		resp, body := f.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d", groupID), bobToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		users := body["users"].([]any)
		assert.Len(t, users, 2)
	})

	t.Run("MissingGroupNotFound", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/groups/999", aliceToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("ListMyGroups", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/groups", bobToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestConversationEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	aliceToken := f.register(t, "alice")
	f.register(t, "bob")

	resp, _ := f.do(t, http.MethodGet, "/api/conversations", aliceToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("MessagesOfForeignConversationForbidden", func(t *testing.T) {
		carolToken := f.register(t, "carol")
		groupResp, body := f.do(t, http.MethodPost, "/api/groups", aliceToken, map[string]any{"name": "Private"})
		require.Equal(t, http.StatusCreated, groupResp.StatusCode)
		convID := int64(body["conversation_id"].(float64))

		resp, _ := f.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", convID), carolToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("InvalidLimitRejected", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/conversations/1/messages?limit=zero", aliceToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealthAndRoot(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, _ = f.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

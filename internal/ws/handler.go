package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatserver/internal/domain"
	"chatserver/internal/metrics"
	"chatserver/internal/security"
	"chatserver/internal/service"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractToken pulls the bearer credential from the handshake: the
// Authorization header, the Sec-WebSocket-Protocol pair, or a token
// query parameter for clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1]
		}
	}

	return r.URL.Query().Get("token")
}

// MakeHandler returns the HTTP handler for the /ws endpoint: the
// connection lifecycle controller. It authenticates the handshake,
// establishes presence and room state via the router, then pumps inbound
// frames through the dispatch table until the socket closes.
//
// An expired token is the one auth failure that gets a socket: the
// connection is upgraded just long enough to emit `token-expired`, then
// closed. Every other credential problem is rejected before upgrade.
func MakeHandler(
	router *Router,
	tokens *security.TokenService,
	users *service.UserService,
	allowedOrigins []string,
	log *zap.Logger,
	m *metrics.Metrics,
) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr := extractToken(r)
		if tokenStr == "" {
			m.RecordAuthFailure()
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		username, err := tokens.Subject(tokenStr)
		if errors.Is(err, domain.ErrTokenExpired) {
			m.RecordAuthFailure()
			conn, upErr := upgrader.Upgrade(w, r, nil)
			if upErr != nil {
				return
			}
			_ = conn.WriteJSON(map[string]any{"type": EventTokenExpired})
			conn.Close()
			return
		}
		if err != nil {
			m.RecordAuthFailure()
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		user, err := users.GetByUsername(r.Context(), username)
		if err != nil || user == nil || !user.IsActive {
			m.RecordAuthFailure()
			http.Error(w, "user not found or inactive", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := NewClient(user.ID, user.Username, conn)
		if err := router.HandleConnect(r.Context(), client); err != nil {
			log.Error("connect failed",
				zap.String("username", user.Username),
				zap.Error(err))
			return
		}
		log.Info("client connected",
			zap.String("conn", client.ID),
			zap.String("username", user.Username))

		defer func() {
			router.HandleDisconnect(context.Background(), client)
			log.Info("client disconnected",
				zap.String("conn", client.ID),
				zap.String("username", user.Username))
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			router.Dispatch(client, raw)
		}
	}
}

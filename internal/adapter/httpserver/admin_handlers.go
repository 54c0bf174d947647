// Package httpserver contains the Admin API server and HTTP adapters.
package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/trendloom/harvester/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// AdminServer handles admin API routes: token issuance and auth status.
type AdminServer struct {
	cfg            config.Config
	sessionManager *SessionManager
	server         *Server // reference to main server for auth delegation
}

// NewAdminServer creates a new admin server
func NewAdminServer(cfg config.Config, server *Server) (*AdminServer, error) {
	sessionManager := NewSessionManager(cfg)
	return &AdminServer{
		cfg:            cfg,
		sessionManager: sessionManager,
		server:         server,
	}, nil
}

// AdminTokenHandler issues a JWT for admin APIs.
func (a *AdminServer) AdminTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		_, span := tracer.Start(r.Context(), "AdminServer.AdminTokenHandler")
		defer span.End()

		lg := LoggerFrom(r)
		var username, password string
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(strings.ToLower(ct), "application/json") {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			username = strings.TrimSpace(body["username"])
			password = strings.TrimSpace(body["password"])
		} else {
			username = strings.TrimSpace(r.FormValue("username"))
			password = strings.TrimSpace(r.FormValue("password"))
		}

		if username != a.cfg.AdminUsername || password != a.cfg.AdminPassword {
			span.SetAttributes(attribute.Bool("auth.success", false))
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			lg.Error("invalid credentials", slog.Any("username", username))
			return
		}

		token, err := a.sessionManager.GenerateJWT(username, 24*time.Hour)
		if err != nil {
			http.Error(w, "Failed to issue token", http.StatusInternalServerError)
			lg.Error("failed to issue token", slog.Any("error", err))
			return
		}
		span.SetAttributes(
			attribute.Bool("auth.success", true),
			attribute.String("admin.username", username),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":    token,
			"username": username,
			"expires":  time.Now().Add(24 * time.Hour).Unix(),
		})
		lg.Info("issued token", slog.Any("username", username))
	}
}

// AdminStatusHandler reports whether the caller is authenticated, via either
// a trusted SSO header or a bearer JWT.
func (a *AdminServer) AdminStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("http.admin")
		_, span := tracer.Start(r.Context(), "AdminServer.AdminStatusHandler")
		defer span.End()

		lg := LoggerFrom(r)
		username := getSSOUsernameFromHeaders(r)
		if username == "" {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				lg.Error("unauthorized", slog.Any("authz", authz))
				return
			}
			token := strings.TrimSpace(authz[len("Bearer "):])
			sub, err := a.sessionManager.ValidateJWT(token)
			if err != nil || sub == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				lg.Error("invalid token", slog.Any("error", err))
				return
			}
			username = sub
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "authenticated", "username": "` + username + `"}`))
	}
}

// AdminAuthRequired middleware for protecting admin routes.
func (a *AdminServer) AdminAuthRequired(next http.HandlerFunc) http.HandlerFunc {
	return a.sessionManager.AuthRequired(next).ServeHTTP
}

// Package httpserver contains HTTP handlers and middleware.
//
// It provides the admin REST API for inspecting and controlling the
// per-platform scheduler: listing and editing scheduler_settings rows,
// enabling/disabling a source, and reporting aggregate run/record stats.
// The package follows clean architecture principles and provides a clear
// separation between HTTP concerns and business logic.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trendloom/harvester/internal/config"
	"github.com/trendloom/harvester/internal/domain"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg               config.Config
	Sources           domain.SourceRepository
	SchedulerSettings domain.SchedulerSettingRepository
	RunLogs           domain.RunLogRepository
	Trends            domain.TrendRepository
	DBCheck           func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(
	cfg config.Config,
	sources domain.SourceRepository,
	settings domain.SchedulerSettingRepository,
	runLogs domain.RunLogRepository,
	trends domain.TrendRepository,
	dbCheck func(context.Context) error,
) *Server {
	return &Server{
		Cfg:               cfg,
		Sources:           sources,
		SchedulerSettings: settings,
		RunLogs:           runLogs,
		Trends:            trends,
		DBCheck:           dbCheck,
	}
}

type settingEnvelope struct {
	Platform       string            `json:"platform"`
	Enabled        bool              `json:"enabled"`
	FrequencyHours float64           `json:"frequency_hours"`
	LastRunAt      *time.Time        `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time        `json:"next_run_at,omitempty"`
	RunCount       int64             `json:"run_count"`
	SuccessCount   int64             `json:"success_count"`
	FailureCount   int64             `json:"failure_count"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func toSettingEnvelope(s domain.SchedulerSetting) settingEnvelope {
	return settingEnvelope{
		Platform:       string(s.Platform),
		Enabled:        s.Enabled,
		FrequencyHours: s.FrequencyHours,
		LastRunAt:      s.LastRunAt,
		NextRunAt:      s.NextRunAt,
		RunCount:       s.RunCount,
		SuccessCount:   s.SuccessCount,
		FailureCount:   s.FailureCount,
		Metadata:       s.Metadata,
	}
}

// SettingsListHandler handles GET /settings.
func (s *Server) SettingsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := s.SchedulerSettings.List(r.Context())
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrDatabase, err), nil)
			return
		}
		out := make([]settingEnvelope, 0, len(settings))
		for _, set := range settings {
			out = append(out, toSettingEnvelope(set))
		}
		writeJSON(w, http.StatusOK, map[string]any{"settings": out})
	}
}

// SettingsGetHandler handles GET /settings/{platform}.
func (s *Server) SettingsGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform := SanitizePlatform(chi.URLParam(r, "platform"))
		if v := ValidatePlatform(platform); !v.Valid {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "invalid platform", Details: v.Errors}})
			return
		}
		setting, err := s.SchedulerSettings.Get(r.Context(), domain.Platform(platform))
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrNotFound, err), nil)
			return
		}
		writeJSON(w, http.StatusOK, toSettingEnvelope(setting))
	}
}

type settingsUpdateRequest struct {
	Enabled        *bool              `json:"enabled"`
	FrequencyHours *float64           `json:"frequency_hours"`
	Metadata       map[string]string  `json:"metadata"`
}

// SettingsPutHandler handles PUT /settings/{platform}.
func (s *Server) SettingsPutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform := SanitizePlatform(chi.URLParam(r, "platform"))
		if v := ValidatePlatform(platform); !v.Valid {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "invalid platform", Details: v.Errors}})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		var req settingsUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json body", domain.ErrInvalidArgument), nil)
			return
		}

		ctx := r.Context()
		current, err := s.SchedulerSettings.Get(ctx, domain.Platform(platform))
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrNotFound, err), nil)
			return
		}

		if req.FrequencyHours != nil {
			if v := ValidateFrequencyHours(*req.FrequencyHours); !v.Valid {
				writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "invalid frequency_hours", Details: v.Errors}})
				return
			}
			current.FrequencyHours = *req.FrequencyHours
		}
		if req.Enabled != nil {
			current.Enabled = *req.Enabled
		}
		if req.Metadata != nil {
			current.Metadata = req.Metadata
		}

		if err := s.SchedulerSettings.Upsert(ctx, current); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrDatabase, err), nil)
			return
		}
		writeJSON(w, http.StatusOK, toSettingEnvelope(current))
	}
}

func (s *Server) setEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform := SanitizePlatform(chi.URLParam(r, "platform"))
		if v := ValidatePlatform(platform); !v.Valid {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "invalid platform", Details: v.Errors}})
			return
		}
		ctx := r.Context()
		current, err := s.SchedulerSettings.Get(ctx, domain.Platform(platform))
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrNotFound, err), nil)
			return
		}
		current.Enabled = enabled
		if err := s.SchedulerSettings.Upsert(ctx, current); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrDatabase, err), nil)
			return
		}
		writeJSON(w, http.StatusOK, toSettingEnvelope(current))
	}
}

// SettingsEnableHandler handles POST /settings/{platform}/enable.
func (s *Server) SettingsEnableHandler() http.HandlerFunc { return s.setEnabled(true) }

// SettingsDisableHandler handles POST /settings/{platform}/disable.
func (s *Server) SettingsDisableHandler() http.HandlerFunc { return s.setEnabled(false) }

// StatsHandler handles GET /stats: aggregate run and record counters across
// every configured source.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		settings, err := s.SchedulerSettings.List(ctx)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrDatabase, err), nil)
			return
		}

		type platformStats struct {
			Platform     string `json:"platform"`
			Enabled      bool   `json:"enabled"`
			RunCount     int64  `json:"run_count"`
			SuccessCount int64  `json:"success_count"`
			FailureCount int64  `json:"failure_count"`
		}

		var totalRuns, totalSuccess, totalFailure int64
		perPlatform := make([]platformStats, 0, len(settings))
		for _, set := range settings {
			totalRuns += set.RunCount
			totalSuccess += set.SuccessCount
			totalFailure += set.FailureCount
			perPlatform = append(perPlatform, platformStats{
				Platform:     string(set.Platform),
				Enabled:      set.Enabled,
				RunCount:     set.RunCount,
				SuccessCount: set.SuccessCount,
				FailureCount: set.FailureCount,
			})
		}

		stuck, err := s.RunLogs.ListRunning(ctx, time.Now().Add(-s.Cfg.StuckRunThreshold))
		stuckCount := 0
		if err == nil {
			stuckCount = len(stuck)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"total_runs":       totalRuns,
			"total_successes":  totalSuccess,
			"total_failures":   totalFailure,
			"stuck_runs":       stuckCount,
			"platforms":        perPlatform,
		})
	}
}

// HealthHandler handles GET /health: a shallow liveness probe that does not
// touch the database.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

// ReadyzHandler returns a readiness handler that probes the database.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 1)
		ok := true
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
				ok = false
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// OpenAPIServe serves api/openapi.yaml if present.
func (s *Server) OpenAPIServe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := os.ReadFile("api/openapi.yaml")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

// MountAdmin mounts the AdminServer's token-issuance (POST /admin/token) and
// auth-status (GET /admin/api/status) endpoints; it mounts nothing when
// NewAdminServer fails.
func (s *Server) MountAdmin(r chi.Router) {
	adminServer, err := NewAdminServer(s.Cfg, s)
	if err != nil {
		return
	}

	r.Post("/admin/token", adminServer.AdminTokenHandler())
	r.Get("/admin/api/status", adminServer.AdminStatusHandler())
}

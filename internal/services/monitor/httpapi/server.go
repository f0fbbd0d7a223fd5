package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/auth"
	"github.com/NordCoder/Uptimer/internal/domain/channel"
	"github.com/NordCoder/Uptimer/internal/domain/ratelimit"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/services/monitor"
	"github.com/NordCoder/Uptimer/internal/services/monitor/incidents"
	"github.com/NordCoder/Uptimer/internal/services/monitor/schedule"
)

const (
	SchedulePath     = "/api/settings/schedule"
	TestNotifyPath   = "/api/notifications/test"
	maxBodyBytes     = 1 << 20
	defaultTrigger   = "/api/cron/check-monitors"
	defaultFailureCB = "/api/cron/failure-callback"
)

type PassRunner interface {
	RunPass(ctx context.Context) (monitor.Summary, error)
}

type FailureRecorder interface {
	RecordSchedulerFailure(ctx context.Context, r incidents.FailureReport, now time.Time) error
}

type ScheduleManager interface {
	Current(ctx context.Context) (*schedule.Info, error)
	Create(ctx context.Context, minutes int) (*schedule.Created, error)
	Update(ctx context.Context, req schedule.UpdateRequest) (*schedule.UpdateResult, error)
}

type ChannelTester interface {
	Test(ctx context.Context, typ channel.Type, cfg json.RawMessage) error
	TestChannel(ctx context.Context, id int64) error
}

type Config struct {
	CronSecret  string
	SiteURL     string
	TriggerPath string
	FailurePath string
	CORSOrigins []string
}

// Server is the external HTTP surface of the monitor. Limiter may be nil.
type Server struct {
	Log       *zap.Logger
	Cfg       Config
	Passes    PassRunner
	Failures  FailureRecorder
	Schedules ScheduleManager
	Channels  ChannelTester
	Signature *auth.Verifier
	Admin     *auth.APIKeyChecker
	Limiter   ratelimit.Limiter
	Clock     func() time.Time
}

func (s *Server) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Server) Router() http.Handler {
	trigger, failure := s.Cfg.TriggerPath, s.Cfg.FailurePath
	if trigger == "" {
		trigger = defaultTrigger
	}
	if failure == "" {
		failure = defaultFailureCB
	}
	origins := s.Cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key", auth.SignatureHeader},
		MaxAge:         300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get(trigger, s.handleTrigger)
		r.Post(trigger, s.handleTrigger)
		r.Post(failure, s.handleFailureCallback)
	})
	r.Get(failure, s.handleFailureHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(s.requireAdmin)
		r.Get(SchedulePath, s.handleGetSchedule)
		r.Post(SchedulePath, s.handleCreateSchedule)
		r.Patch(SchedulePath, s.handleUpdateSchedule)
		r.Post(TestNotifyPath, s.handleTestNotification)
	})

	return obs.HTTPHandler(r, "monitor-api")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]any { return map[string]any{"error": msg} }

// sentence capitalizes an error string for a JSON response body.
func sentence(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func newRequestID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := s.Limiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			obs.WithTrace(r.Context(), s.Log).Warn("rate limiter unavailable", zap.Error(err))
			ok = true
		}
		if !ok {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody("Too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Admin == nil || !s.Admin.Check(r) {
			writeJSON(w, http.StatusUnauthorized, errorBody("Unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

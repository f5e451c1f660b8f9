package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"cognita/internal/auth"
	"cognita/internal/log"
	"cognita/internal/middleware/ratelimit"
	"cognita/internal/middleware/security"
	"cognita/internal/middleware/trace"
	"cognita/internal/services"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the API server.
type Deps struct {
	Records   *services.RecordService
	Dashboard *services.DashboardService
	DB        Pinger
	Verifier  *auth.Verifier
	// DevUser, when set, authenticates every request as this user.
	DevUser   uuid.UUID
	Location  *time.Location
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	records   *services.RecordService
	dashboard *services.DashboardService
	db        Pinger
	location  *time.Location
	logger    *log.Logger
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Verifier == nil {
		deps.Verifier = auth.NewVerifier("", nil)
	}
	if deps.RateLimit.RequestsPerMinute == 0 {
		deps.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		records:   deps.Records,
		dashboard: deps.Dashboard,
		db:        deps.DB,
		location:  deps.Location,
		logger:    deps.Logger.WithComponent(log.ComponentHTTP),
		detector:  security.NewDetector(),
		limiter:   ratelimit.NewLimiter(deps.RateLimit),
		now:       time.Now,
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)

	api.HandleFunc("GET /api/study-sessions", s.handleListStudySessions)
	api.HandleFunc("POST /api/study-sessions", s.handleCreateStudySession)
	api.HandleFunc("DELETE /api/study-sessions/{id}", s.handleDeleteStudySession)

	api.HandleFunc("GET /api/habits", s.handleListHabits)
	api.HandleFunc("POST /api/habits", s.handleCreateHabit)
	api.HandleFunc("PUT /api/habits/{id}", s.handleUpdateHabit)
	api.HandleFunc("DELETE /api/habits/{id}", s.handleDeleteHabit)
	api.HandleFunc("POST /api/habits/{id}/completions/{date}", s.handleToggleHabit)

	api.HandleFunc("GET /api/finances", s.handleListTransactions)
	api.HandleFunc("POST /api/finances", s.handleCreateTransaction)
	api.HandleFunc("DELETE /api/finances/{id}", s.handleDeleteTransaction)

	api.HandleFunc("GET /api/mood", s.handleListMood)
	api.HandleFunc("PUT /api/mood", s.handleUpsertMood)
	api.HandleFunc("DELETE /api/mood/{id}", s.handleDeleteMood)

	api.HandleFunc("GET /api/tasks", s.handleListTasks)
	api.HandleFunc("POST /api/tasks", s.handleCreateTask)
	api.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	api.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", auth.Middleware(deps.Verifier, deps.DevUser, s.onAuthError)(api))

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Handler(h)
	h = log.RequestIDMiddleware(trace.FromRequest)(h)
	h = log.Middleware(deps.Logger)(h)
	h = s.tracer.Handler(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onAuthError(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "Authentication failed",
		log.FieldPath, r.URL.Path, log.FieldError, err.Error())
	writeError(w, r, err)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

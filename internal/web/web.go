package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"parkalot/internal/auth"
	"parkalot/internal/config"
	appLog "parkalot/internal/log"
	"parkalot/internal/metrics"
	"parkalot/internal/reservation"
	"parkalot/internal/store"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Config       *config.Config
	Store        store.Store
	Reservations *reservation.Service
	Accounts     *auth.Accounts
	Sessions     *auth.Sessions
	Limiter      *auth.Limiter
}

// Server serves the HTML pages, the JSON API and the calendar feed.
type Server struct {
	cfg      *config.Config
	store    store.Store
	svc      *reservation.Service
	accounts *auth.Accounts
	sessions *auth.Sessions
	limiter  *auth.Limiter
	validate *validator.Validate
	views    *views
	mux      *http.ServeMux

	// Rendered feeds keyed by user id. Calendar clients poll aggressively,
	// so a short TTL saves repeated store scans.
	feedMu    sync.RWMutex
	feedCache map[int64]feedCacheEntry
	feedTTL   time.Duration
}

type feedCacheEntry struct {
	body      string
	etag      string
	updatedAt time.Time
}

// NewServer constructs a Server and registers its routes.
func NewServer(d Deps) (*Server, error) {
	if d.Config == nil || d.Store == nil || d.Reservations == nil || d.Accounts == nil || d.Sessions == nil {
		return nil, errors.New("web: missing dependency")
	}
	if d.Limiter == nil {
		d.Limiter = auth.NewLimiter(0, 0)
	}

	v, err := loadViews(d.Reservations.Location())
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       d.Config,
		store:     d.Store,
		svc:       d.Reservations,
		accounts:  d.Accounts,
		sessions:  d.Sessions,
		limiter:   d.Limiter,
		validate:  newValidator(),
		views:     v,
		mux:       http.NewServeMux(),
		feedCache: make(map[int64]feedCacheEntry),
		feedTTL:   30 * time.Second,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the routes wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	return s.requestID(s.accessLog(s.loadUser(s.mux)))
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(appLog.Slog().Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.cfg.Metrics {
		s.mux.Handle("GET /metrics", metrics.Handler())
	}
	s.mux.HandleFunc("GET /calendar/{token}", s.handleFeed)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /login", s.handleLoginForm)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /register", s.handleRegisterForm)
	s.mux.HandleFunc("POST /register", s.handleRegister)

	s.mux.Handle("GET /profile", s.requirePage(s.handleProfile))
	s.mux.Handle("GET /reservation/new", s.requirePage(s.handleNewForm))
	s.mux.Handle("POST /reservation/new", s.requirePage(s.handleNew))
	s.mux.Handle("GET /reservation/list/{day}", s.requirePage(s.handleDayList))
	s.mux.Handle("GET /reservation/edit/{id}", s.requirePage(s.handleEditForm))
	s.mux.Handle("POST /reservation/edit/{id}", s.requirePage(s.handleEdit))
	s.mux.Handle("POST /reservation/cancel/{id}", s.requirePage(s.handleCancel))

	s.mux.Handle("GET /api/reservations", s.requireAPI(s.handleAPIList))
	s.mux.Handle("POST /api/reservations", s.requireAPI(s.handleAPICreate))
	s.mux.Handle("GET /api/reservations/{id}", s.requireAPI(s.handleAPIGet))
	s.mux.Handle("GET /api/reservations/{id}/chain", s.requireAPI(s.handleAPIChain))
	s.mux.Handle("PATCH /api/reservations/{id}", s.requireAPI(s.handleAPIUpdate))
	s.mux.Handle("DELETE /api/reservations/{id}", s.requireAPI(s.handleAPICancel))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

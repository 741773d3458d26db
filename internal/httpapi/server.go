package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/connectauth"
	"github.com/MrEthical07/connectauth/middleware"
)

// Options configures the router.
type Options struct {
	Engine *connectauth.Engine
	Logger zerolog.Logger
	// AllowedOrigins lists the dashboard origins allowed to send credentialed requests.
	AllowedOrigins []string
	// GlobalRPM is a coarse per-IP ceiling across all routes. Zero disables it.
	GlobalRPM int
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Trace wraps the whole router when set.
	Trace func(http.Handler) http.Handler
}

// Server holds the handlers of the auth API.
type Server struct {
	engine *connectauth.Engine
	config connectauth.Config
	logger zerolog.Logger
}

// NewRouter builds the HTTP handler for every auth, user and admin route.
func NewRouter(opts Options) http.Handler {
	s := &Server{
		engine: opts.Engine,
		config: opts.Engine.Config(),
		logger: opts.Logger.With().Str("component", "httpapi").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(clientIP)

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           int((10 * time.Minute).Seconds()),
		}))
	}
	if opts.GlobalRPM > 0 {
		r.Use(httprate.LimitByIP(opts.GlobalRPM, time.Minute))
	}

	r.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	guard := middleware.Guard(s.engine, s.config.Cookie.SessionName)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Get("/verify-email", s.handleVerifyEmail)
		r.Post("/verify-otp", s.handleVerifyOTP)
		r.Post("/resend-verification", s.handleResendVerification)
		r.Post("/login", s.handleLogin)
		r.Post("/magiclink", s.handleMagicLink)
		r.Get("/magiclink/verify", s.handleMagicLinkVerify)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)
		r.Post("/heartbeat", s.handleHeartbeat)
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/onboarded", s.handleOnboarded)
		r.With(guard).Get("/activity", s.handleActivity)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(guard, middleware.RequireAdmin)
		r.Post("/ban-user", s.handleBan)
		r.Post("/unban-user", s.handleUnban)
		r.Get("/online-sessions", s.handleOnlineSessions)
		r.Get("/online-user", s.handleOnlineUser)
		r.Get("/users", s.handleListUsers)
		r.Get("/users/search", s.handleSearchUsers)
		r.Get("/users/{userID}", s.handleGetUser)
	})

	var h http.Handler = r
	if opts.Trace != nil {
		h = opts.Trace(h)
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientIP hands the remote address, already rewritten by RealIP, to the engine.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(connectauth.WithClientIP(r.Context(), ip)))
	})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := logger.Info()
			if status >= http.StatusInternalServerError {
				ev = logger.Error()
			}
			ev.Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

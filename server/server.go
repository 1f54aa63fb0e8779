package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-blog-server/auth"
	"github.com/jrsteele09/go-blog-server/cookies"
	"github.com/jrsteele09/go-blog-server/identity"
	"github.com/jrsteele09/go-blog-server/internal/config"
	"github.com/jrsteele09/go-blog-server/internal/ratelimit"
	"github.com/jrsteele09/go-blog-server/token/jwt"
	"github.com/jrsteele09/go-blog-server/users"
	"github.com/rs/zerolog/log"
)

// Pinger is a dependency the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	handler   http.Handler
	routes    []string
	config    config.Config
	codec     *jwt.Codec
	sessions  *auth.SessionService
	users     *users.Service
	cookies   *cookies.Transport
	providers *identity.Registry
	bridge    *identity.Bridge
	limiter   ratelimit.Limiter
	health    map[string]Pinger

	oauth2Redirect *url.URL
}

type Option func(*Server)

// WithLimiter replaces the login rate limiter built from config.
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// WithIdentityProviders enables third-party login.
func WithIdentityProviders(registry *identity.Registry, bridge *identity.Bridge) Option {
	return func(s *Server) {
		s.providers = registry
		s.bridge = bridge
	}
}

// WithHealthCheck adds a dependency to GET /healthz.
func WithHealthCheck(name string, p Pinger) Option {
	return func(s *Server) {
		s.health[name] = p
	}
}

func New(
	cfg config.Config,
	codec *jwt.Codec,
	sessions *auth.SessionService,
	userService *users.Service,
	transport *cookies.Transport,
	options ...Option,
) (*Server, error) {
	if cfg == nil || codec == nil || sessions == nil || userService == nil || transport == nil {
		return nil, errors.New("[Server New] config, codec, sessions, users and cookie transport are required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		codec:    codec,
		sessions: sessions,
		users:    userService,
		cookies:  transport,
		health:   make(map[string]Pinger),
	}
	if cfg.GetEnableRateLimiting() {
		s.limiter = ratelimit.NewMemory(cfg.GetLoginRateLimit())
	}
	for _, opt := range options {
		opt(s)
	}

	if s.providers == nil {
		registry, err := identity.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("[Server New] empty provider registry: %w", err)
		}
		s.providers = registry
	}
	if len(s.providers.Names()) > 0 {
		if s.bridge == nil {
			return nil, errors.New("[Server New] identity providers need a bridge")
		}
		redirect, err := parseRedirectURI(cfg.GetOAuth2RedirectURI())
		if err != nil {
			return nil, fmt.Errorf("[Server New] invalid OAUTH2_REDIRECT_URI: %w", err)
		}
		s.oauth2Redirect = redirect
	}

	s.initRoutes()
	s.logRoutes()

	s.handler = ChainMiddleware(s.mux.ServeHTTP,
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.CorsMiddleware,
		s.Authenticate,
	)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// CallbackURL is the redirect URI registered with a third-party provider.
func CallbackURL(baseURL, provider string) string {
	return strings.TrimRight(baseURL, "/") + strings.Replace(RouteOAuth2Callback, "{provider}", provider, 1)
}

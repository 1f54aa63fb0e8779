package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-blog-server/auth"
	"github.com/jrsteele09/go-blog-server/cookies"
	"github.com/jrsteele09/go-blog-server/identity"
	"github.com/jrsteele09/go-blog-server/identity/oidcprovider"
	"github.com/jrsteele09/go-blog-server/internal/config"
	"github.com/jrsteele09/go-blog-server/internal/logging"
	"github.com/jrsteele09/go-blog-server/server"
	"github.com/jrsteele09/go-blog-server/token/jwt"
	"github.com/jrsteele09/go-blog-server/token/keys"
	"github.com/jrsteele09/go-blog-server/token/refresh"
	"github.com/jrsteele09/go-blog-server/users"
	"github.com/jrsteele09/go-blog-server/users/sqliterepo"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

var errPanicRecovered = errors.New("panic recovered")

func main() {
	port := flag.StringP("port", "p", "", "listen port (overrides PORT)")
	providers := flag.String("providers", "", "OAuth2 providers YAML file (overrides OAUTH_PROVIDERS_FILE)")
	flag.Parse()

	var options []config.Option
	if *port != "" {
		options = append(options, config.WithPort(*port))
	}
	if *providers != "" {
		options = append(options, config.WithProvidersFile(*providers))
	}

	for {
		err := run(config.New(options...))
		if err == nil {
			break
		}
		if !errors.Is(err, errPanicRecovered) {
			log.Fatal().Err(err).Msg("error running server")
		}
		log.Error().Err(err).Msg("restarting server")
		time.Sleep(1 * time.Second)
	}
	log.Info().Msg("server stopped")
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	userRepo, err := sqliterepo.Open(c.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("sqliterepo.Open: %w", err)
	}
	defer userRepo.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
		DB:       c.GetRedisDB(),
	})
	defer rdb.Close()
	refreshRepo := refresh.NewRedisRepo(rdb)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := refreshRepo.Ping(pingCtx); err != nil {
		// Keep serving: logins answer 503 until Redis comes back.
		log.Warn().Err(err).Str("addr", c.GetRedisAddr()).Msg("redis not reachable at startup")
	}

	handler, err := newHandler(c, userRepo, refreshRepo)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(httpServer) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func newHandler(c config.Config, userRepo *sqliterepo.Repo, refreshRepo *refresh.RedisRepo) (http.Handler, error) {
	signer, err := keys.NewHMACSigner(c.GetSigningSecret())
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	codec, err := jwt.NewCodec(signer,
		jwt.WithAccessTTL(c.GetAccessTokenExpiry()),
		jwt.WithRenewalTTL(c.GetRefreshTokenExpiry()),
		jwt.WithIssuer(c.GetIssuer()),
		jwt.WithLeeway(c.GetClockSkew()),
	)
	if err != nil {
		return nil, fmt.Errorf("jwt.NewCodec: %w", err)
	}

	tokens, err := refresh.NewManager(refreshRepo, codec.RenewalTTL(), refresh.WithTimeout(c.GetStoreTimeout()))
	if err != nil {
		return nil, fmt.Errorf("refresh.NewManager: %w", err)
	}

	userService, err := users.NewService(userRepo)
	if err != nil {
		return nil, fmt.Errorf("users.NewService: %w", err)
	}
	if err := userService.EnsureAdmin(context.Background(), c.GetAdminUsername(), c.GetAdminPassword()); err != nil {
		return nil, err
	}

	transport := cookies.NewTransport(cookies.Options{
		Secure:   c.GetCookieSecure(),
		SameSite: c.GetCookieSameSite(),
	})
	sessions, err := auth.NewSessionService(codec, tokens, transport, userService,
		auth.WithCookieName(c.GetRefreshCookieName()),
	)
	if err != nil {
		return nil, fmt.Errorf("auth.NewSessionService: %w", err)
	}

	options := []server.Option{
		server.WithHealthCheck("redis", refreshRepo),
		server.WithHealthCheck("database", userRepo),
	}
	registry, err := loadProviders(c)
	if err != nil {
		return nil, err
	}
	if len(registry.Names()) > 0 {
		bridge, err := identity.NewBridge(userRepo, sessions)
		if err != nil {
			return nil, fmt.Errorf("identity.NewBridge: %w", err)
		}
		options = append(options, server.WithIdentityProviders(registry, bridge))
	}

	return server.New(c, codec, sessions, userService, transport, options...)
}

func loadProviders(c config.Config) (*identity.Registry, error) {
	configs, err := c.LoadProviders()
	if err != nil {
		return nil, err
	}
	var list []identity.Provider
	for _, pc := range configs {
		p, err := oidcprovider.New(context.Background(), pc, server.CallbackURL(c.GetBaseURL(), pc.Name))
		if err != nil {
			return nil, err
		}
		log.Info().Str("provider", pc.Name).Msg("identity provider enabled")
		list = append(list, p)
	}
	return identity.NewRegistry(list...)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/services"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Options configures a [Service].
type Options struct {
	Config  *shared.Config
	Version string
	Logger  *log.Logger
	// Tokens and Fetcher default to a [services.TokenCache] and [services.Proxy] built from Config.
	Tokens  services.TokenProvider
	Fetcher services.Fetcher
	// Reader defaults to a Web API client authorized by the token cache.
	Reader PlayerStateReader
}

// Service is the tunedeck HTTP service: token endpoint, proxy, setup flow and the now-playing feed.
type Service struct {
	addr   string
	router *BasicRouter
	hub    *Hub
	poller *Poller
	logger *log.Logger

	httpServer *http.Server
}

// New wires the routes and middleware for cfg.
func New(opts Options) *Service {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	sp := cfg.Credentials.Spotify
	tokens := opts.Tokens
	if tokens == nil {
		tokens = services.NewTokenCache(services.TokenCacheOpts{
			ClientID:     sp.ClientID,
			ClientSecret: sp.ClientSecret,
			RefreshToken: sp.RefreshToken,
			Logger:       logger,
		})
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = services.NewProxy(services.ProxyOpts{Tokens: tokens, Logger: logger})
	}

	router := NewBasicRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(shared.WithLogger(logger, "component", "http")),
		middleware.Recoverer,
		middleware.NoCache,
		Timeout(requestTimeout),
	)
	if cfg.Server.RateLimit > 0 {
		router.Use(NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).Middleware("/api/"))
	}

	router.Handler(HealthHandler{Version: opts.Version})
	router.Handler(NewTokenHandler(tokens, logger))
	router.Handler(NewProxyHandler(fetcher, logger))
	router.Handler(NewSetupHandler(SetupHandlerOpts{
		Config: services.NewOAuthConfig(sp.ClientID, sp.ClientSecret, sp.RedirectURI),
		Logger: logger,
	}))

	s := &Service{addr: cfg.Server.Addr(), router: router, logger: logger}

	if cfg.Server.NowPlaying {
		reader := opts.Reader
		if reader == nil {
			if ts, ok := tokens.(oauth2.TokenSource); ok {
				reader = spotify.New(oauth2.NewClient(context.Background(), ts))
			}
		}
		if reader != nil {
			s.hub = NewHub(logger)
			s.poller = NewPoller(reader, s.hub, cfg.Server.PollInterval.Duration, logger)
			router.Handler(s.hub)
		} else {
			logger.Warn("now playing feed disabled: token provider cannot authorize Web API calls")
		}
	}

	return s
}

// Handler returns the root handler.
func (s *Service) Handler() http.Handler { return s.router }

// Run serves on the configured address until ctx is done, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	if s.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.poller.Run(ctx)
		}()
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutdown signal received, stopping http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if s.hub != nil {
			s.hub.Close()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "err", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	wg.Wait()
	return nil
}

package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/evmarket/internal/auth"
	"github.com/nfrund/evmarket/internal/chat"
	"github.com/nfrund/evmarket/internal/config"
	"github.com/nfrund/evmarket/internal/database"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/handlers"
	"github.com/nfrund/evmarket/internal/hub"
	appmiddleware "github.com/nfrund/evmarket/internal/middleware"
	"github.com/nfrund/evmarket/internal/module"
	"github.com/nfrund/evmarket/internal/presence"
	"github.com/nfrund/evmarket/internal/pubsub"
	ws "github.com/nfrund/evmarket/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	Cfg config.Provider

	injector *do.RootScope
	modules  []module.Module
	metrics  *prometheus.Registry

	db       *database.Database
	bus      *pubsub.WatermillBridge
	hub      *hub.Hub
	presence *presence.Service
	bridge   *ws.Bridge

	cancel          context.CancelFunc
	shutdownTracing func(context.Context) error
}

// Option configures a Server.
type Option func(*options)

type options struct {
	tracing    pubsub.TracingConfig
	dbOptions  []database.Option
	presence   []presence.Option
	modules    []module.Module
	originHost []string
}

// WithTracing overrides the bus tracing configuration.
func WithTracing(cfg pubsub.TracingConfig) Option {
	return func(o *options) { o.tracing = cfg }
}

// WithDatabaseOptions passes options to database.NewDB.
func WithDatabaseOptions(opts ...database.Option) Option {
	return func(o *options) { o.dbOptions = append(o.dbOptions, opts...) }
}

// WithPresenceOptions passes options to the presence service.
func WithPresenceOptions(opts ...presence.Option) Option {
	return func(o *options) { o.presence = append(o.presence, opts...) }
}

// WithOriginPatterns allows cross-origin hub connections from the given hosts.
func WithOriginPatterns(patterns ...string) Option {
	return func(o *options) { o.originHost = patterns }
}

// New wires every service into the injector, boots the modules and registers
// the routes. The server is ready to serve when New returns.
func New(ctx context.Context, cfg config.Provider, opts ...Option) (*Server, error) {
	o := options{tracing: pubsub.LoadTracingConfigFromEnv(), modules: AppModules()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.NewDB(ctx, cfg, o.dbOptions...)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	tracer, shutdownTracing, err := pubsub.SetupOTel(ctx, o.tracing)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	var busOpts []pubsub.BridgeOption
	if o.tracing.Enabled {
		busOpts = append(busOpts, pubsub.WithTracer(tracer))
	}
	bus := pubsub.NewWatermillBridge(busOpts...)

	s := &Server{
		Cfg:             cfg,
		injector:        do.New(),
		modules:         o.modules,
		metrics:         prometheus.NewRegistry(),
		db:              db,
		bus:             bus,
		hub:             hub.New(),
		shutdownTracing: shutdownTracing,
	}
	s.provideCore(o)

	bootCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.presence = do.MustInvoke[*presence.Service](s.injector)
	if err := s.presence.Start(bootCtx); err != nil {
		s.closeCore()
		return nil, fmt.Errorf("start presence: %w", err)
	}

	for _, m := range s.modules {
		if err := m.Register(s.injector); err != nil {
			s.closeCore()
			return nil, fmt.Errorf("register module %s: %w", m.Name(), err)
		}
	}

	authorizer, err := do.Invoke[*chat.Service](s.injector)
	if err != nil {
		s.closeCore()
		return nil, fmt.Errorf("resolve chat service: %w", err)
	}
	s.bridge = ws.NewBridge(s.hub, s.bus, authorizer,
		ws.WithSendBuffer(cfg.GetHubSendBuffer()),
		ws.WithOriginPatterns(o.originHost...),
	)

	s.E = s.newEcho()
	api := s.RegisterRoutes()
	for _, m := range s.modules {
		if err := m.Boot(bootCtx, api, s.injector); err != nil {
			s.closeCore()
			return nil, fmt.Errorf("boot module %s: %w", m.Name(), err)
		}
		slog.Info("Module booted", "module", m.Name())
	}

	return s, nil
}

// provideCore registers the shared services every module may depend on.
func (s *Server) provideCore(o options) {
	i := s.injector
	do.ProvideValue[config.Provider](i, s.Cfg)
	do.ProvideValue(i, s.db)
	do.ProvideValue[pubsub.Publisher](i, s.bus)
	do.ProvideValue[pubsub.Subscriber](i, s.bus)
	do.ProvideValue(i, s.hub)

	do.Provide(i, func(i do.Injector) (domain.ConversationRepository, error) {
		return database.NewConversationStore(do.MustInvoke[*database.Database](i)), nil
	})
	do.Provide(i, func(i do.Injector) (domain.MessageRepository, error) {
		return database.NewMessageStore(do.MustInvoke[*database.Database](i)), nil
	})
	do.Provide(i, func(i do.Injector) (*auth.JWT, error) {
		cfg := do.MustInvoke[config.Provider](i)
		return auth.NewJWT(cfg.GetJWTSecret(), cfg.GetJWTIssuer(), cfg.GetJWTTTL()), nil
	})
	do.Provide(i, func(i do.Injector) (*presence.Service, error) {
		return presence.NewService(
			do.MustInvoke[pubsub.Publisher](i),
			do.MustInvoke[pubsub.Subscriber](i),
			o.presence...,
		), nil
	})
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler

	e.Use(middleware.RequestID())
	e.Use(appmiddleware.Logger)
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "evmarket",
		Registerer: s.metrics,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	return e
}

// Injector exposes the service container, useful for testing.
func (s *Server) Injector() do.Injector {
	return s.injector
}

// JWT returns the token service used by the Auth middleware.
func (s *Server) JWT() *auth.JWT {
	return do.MustInvoke[*auth.JWT](s.injector)
}

// Hub returns the real-time hub, useful for testing.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// closeCore releases resources acquired by New when boot fails.
func (s *Server) closeCore() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.presence != nil {
		s.presence.Shutdown()
	}
	_ = s.bus.Close()
	_ = s.shutdownTracing(context.Background())
	_ = s.db.Close()
}

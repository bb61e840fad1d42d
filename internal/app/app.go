// Package app wires a configured server: logging router and sinks, the
// level, the bot engine and its real-time loop, and the debug HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"arena-bots/server/internal/config"
	"arena-bots/server/internal/level"
	"arena-bots/server/internal/levelgen"
	servernet "arena-bots/server/internal/net"
	"arena-bots/server/internal/net/ws"
	"arena-bots/server/internal/sim"
	"arena-bots/server/internal/tactical"
	"arena-bots/server/internal/telemetry"
	"arena-bots/server/logging"
	loggingSinks "arena-bots/server/logging/sinks"
)

// Environment overrides applied on top of the config file.
const (
	EnvConfig     = "BOTS_CONFIG"
	EnvListenAddr = "BOTS_LISTEN_ADDR"
	EnvLogSinks   = "BOTS_LOG_SINKS"
	EnvPprof      = "BOTS_ENABLE_PPROF"
)

type Options struct {
	// ConfigPath is read when set; otherwise BOTS_CONFIG, then the defaults.
	ConfigPath string
	Logger     telemetry.Logger
	// Stdout receives console and, without a json file, json sink output.
	Stdout io.Writer
}

// LoadConfig resolves the configuration file and applies the environment.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *config.Config) error {
	if addr := strings.TrimSpace(os.Getenv(EnvListenAddr)); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if raw := os.Getenv(EnvPprof); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvPprof, raw, err)
		}
		cfg.Server.Observability.EnablePprof = value
	}
	if raw := os.Getenv(EnvLogSinks); raw != "" {
		if err := cfg.SetSinks(strings.Split(raw, ",")); err != nil {
			return fmt.Errorf("%s: %w", EnvLogSinks, err)
		}
	}
	return nil
}

// Server is a fully wired, not yet running server.
type Server struct {
	ID      string
	Config  *config.Config
	Router  *logging.Router
	Level   *level.Context
	Engine  *sim.Engine
	Loop    *sim.Loop
	Stream  *ws.Handler
	Metrics *telemetry.Counters
	Handler http.Handler

	logger  telemetry.Logger
	closers []func(context.Context) error
}

// Build wires every component of cfg without starting anything.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	s := &Server{
		ID:      uuid.NewString(),
		Config:  cfg,
		Metrics: telemetry.NewCounters(),
		logger:  logger,
	}

	var router *logging.Router
	routed := logging.PublisherFunc(func(ctx context.Context, event logging.Event) {
		if router != nil {
			router.Publish(ctx, event)
		}
	})
	var loop *sim.Loop
	s.Stream = ws.NewHandler(ws.HandlerConfig{
		Logger:    logger,
		Publisher: routed,
		Tick: func() uint64 {
			if loop == nil {
				return 0
			}
			return loop.Tick()
		},
		Snapshot: func() ws.Message {
			if loop == nil {
				return ws.Message{Type: "status"}
			}
			return s.statusMessage()
		},
	})

	router, closeRouter, err := OpenRouter(cfg.RouterConfig(), stdout, s.Stream)
	if err != nil {
		return nil, err
	}
	s.Router = router
	s.closers = append(s.closers, closeRouter)
	pub := logging.WithTraceID(router, s.ID)

	levelOpts := level.Options{
		Name:         cfg.Level.Name,
		Seed:         cfg.Level.Seed,
		LinkPoolSize: cfg.Level.LinkPoolSize,
		TraceStep:    cfg.Level.TraceStep,
		Clusters:     cfg.Clusters,
		Publisher:    pub,
		Logger:       logger,
		Metrics:      s.Metrics,
	}
	if cfg.Level.SpotCache != "" {
		cache, err := tactical.OpenSpotCache(cfg.Level.SpotCache, pub)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return cache.Close() })
		levelOpts.SpotCache = cache
	}

	var placements []levelgen.Item
	if cfg.Level.File != "" {
		s.Level, err = level.Load(ctx, cfg.Level.File, levelOpts)
	} else {
		if levelOpts.Name == "" {
			levelOpts.Name = "generated"
		}
		var gen *levelgen.Level
		gen, err = levelgen.Generate(cfg.Level.Generate)
		if err == nil {
			placements = gen.Items
			s.Level, err = level.New(ctx, gen.World, levelOpts)
		}
	}
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("load level: %w", err)
	}

	s.Engine, err = sim.NewEngine(s.Level,
		sim.WithDeps(sim.Deps{Logger: logger, Metrics: s.Metrics, Publisher: pub}),
		sim.WithConfig(cfg.Simulation.Engine),
		sim.WithBehaviour(cfg.Behaviour()),
	)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	if err := s.populate(ctx, placements); err != nil {
		s.Close(ctx)
		return nil, err
	}
	loop = sim.NewLoop(s.Engine, cfg.Simulation.Loop, sim.LoopHooks{})
	s.Loop = loop

	handlerCfg := servernet.HTTPHandlerConfig{
		Logger:        logger,
		Loop:          loop,
		Stream:        s.Stream,
		Metrics:       s.Metrics,
		Router:        router,
		Observability: cfg.Server.Observability,
	}
	if recent, ok := router.Sink("memory").(*loggingSinks.MemorySink); ok {
		handlerCfg.Events = recent
	}
	s.Handler = servernet.NewHTTPHandler(handlerCfg)
	return s, nil
}

// OpenRouter builds the enabled sinks and a router over them. The returned
// close function shuts the router down and then closes any log file. stream
// backs the ws sink and may be nil when that sink is disabled.
func OpenRouter(cfg logging.Config, stdout io.Writer, stream loggingSinks.EventBroadcaster) (*logging.Router, func(context.Context) error, error) {
	var (
		named []logging.NamedSink
		files []*os.File
	)
	closeFiles := func() error {
		var errs []error
		for _, f := range files {
			errs = append(errs, f.Close())
		}
		return errors.Join(errs...)
	}
	for _, name := range cfg.EnabledSinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(stdout, cfg.Console)})
		case "json":
			w := stdout
			if cfg.JSON.FilePath != "" {
				file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					closeFiles()
					return nil, nil, fmt.Errorf("open json log: %w", err)
				}
				files = append(files, file)
				w = file
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(w, cfg.JSON)})
		case "zap":
			sink, err := loggingSinks.NewZap(nil, cfg.Zap)
			if err != nil {
				closeFiles()
				return nil, nil, fmt.Errorf("build zap sink: %w", err)
			}
			named = append(named, logging.NamedSink{Name: name, Sink: sink})
		case "memory":
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemorySink(cfg.Memory.Capacity)})
		case "ws":
			if stream == nil {
				continue
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewWebsocket(stream)})
		default:
			closeFiles()
			return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownSink, name)
		}
	}
	router, err := logging.NewRouter(logging.ClockFunc(time.Now), cfg, named)
	if err != nil {
		closeFiles()
		return nil, nil, fmt.Errorf("failed to construct logging router: %w", err)
	}
	closer := func(ctx context.Context) error {
		return errors.Join(router.Close(ctx), closeFiles())
	}
	return router, closer, nil
}

// populate adds the configured bots at random spawn points, then the
// generator's item placements numbered after the bots.
func (s *Server) populate(ctx context.Context, placements []levelgen.Item) error {
	rng := s.Level.RNG("app.spawn")
	id := s.Config.Bots.FirstID
	for i := 0; i < s.Config.Bots.Count; i++ {
		origin, ok := s.Engine.SpawnPoint(rng)
		if !ok {
			return fmt.Errorf("bot %d: %w", id, sim.ErrOutsideWorld)
		}
		if _, err := s.Engine.AddBot(ctx, sim.BotSpec{ID: id, Origin: origin}); err != nil {
			return fmt.Errorf("bot %d: %w", id, err)
		}
		id++
	}
	for _, it := range placements {
		_, err := s.Engine.AddItem(sim.ItemSpec{
			EntityID: id,
			Name:     fmt.Sprintf("%s_%d", it.Kind, id),
			Kind:     it.Kind,
			Origin:   it.Origin,
			Respawn:  sim.RespawnDelay(it.Kind),
		})
		if err != nil {
			return fmt.Errorf("item %d: %w", id, err)
		}
		id++
	}
	return nil
}

func (s *Server) statusMessage() ws.Message {
	var status []sim.BotStatus
	s.Loop.Do(func(e *sim.Engine) { status = e.Status() })
	return ws.Message{Type: "status", Tick: s.Loop.Tick(), Data: status}
}

// pushStatus broadcasts bot status to debug subscribers every interval.
func (s *Server) pushStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Stream.Count() == 0 {
				continue
			}
			s.Stream.Broadcast(s.statusMessage())
		}
	}
}

// Run serves until ctx is done or the listener fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Loop.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.pushStatus(ctx, s.Config.Server.StatusInterval)
	}()

	srv := &http.Server{Addr: s.Config.Server.ListenAddr, Handler: s.Handler}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}
	cancel()
	s.Stream.Close()

	shutdownCtx, stop := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown: %w", err)
	}
	wg.Wait()
	return runErr
}

// Close releases the spot cache, then the router and its log files.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Run loads the configuration, builds the server and serves until ctx ends.
func Run(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	s, err := Build(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(context.Background()); cerr != nil {
			s.logger.Printf("failed to close server: %v", cerr)
		}
	}()
	return s.Run(ctx)
}

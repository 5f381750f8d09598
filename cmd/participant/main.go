package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genricoloni/wozplayer/internal/audio"
	"github.com/genricoloni/wozplayer/internal/config"
	"github.com/genricoloni/wozplayer/internal/display"
	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/genricoloni/wozplayer/internal/fetcher"
	"github.com/genricoloni/wozplayer/internal/governor"
	"github.com/genricoloni/wozplayer/internal/metrics"
	"github.com/genricoloni/wozplayer/internal/mpv"
	"github.com/genricoloni/wozplayer/internal/notify"
	"github.com/genricoloni/wozplayer/internal/orchestrator"
	"github.com/genricoloni/wozplayer/internal/overlay"
	"github.com/genricoloni/wozplayer/internal/preload"
	"github.com/genricoloni/wozplayer/internal/processor"
	"github.com/genricoloni/wozplayer/internal/resolver"
	"github.com/genricoloni/wozplayer/internal/transport/dbusapi"
	"github.com/genricoloni/wozplayer/internal/transport/httpapi"
	"github.com/genricoloni/wozplayer/internal/video"
	"github.com/genricoloni/wozplayer/internal/visualizer"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const openTimeout = 10 * time.Second

// AppOptions is the participant dependency graph
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		fx.Annotate(config.NewAppConfig, fx.As(new(domain.Config))),
		fx.Annotate(resolver.NewPathResolver, fx.As(new(domain.Resolver))),
		display.NewDisplay,
		newLauncher,
		newVideoEngine,
		newAudioEngine,
		newVisualizer,
		newBanner,
		metrics.New,
		httpapi.NewEventStream,
		newHub,
		newGovernor,
		fx.Annotate(newOrchestrator, fx.As(fx.Self()), fx.As(new(domain.Controller))),
		dbusapi.NewService,
		newHTTPServer,
	),

	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "participant failed to start: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "participant failed to stop cleanly: %v\n", err)
		os.Exit(1)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// newLauncher ties the mpv processes to the application lifetime
func newLauncher(lc fx.Lifecycle, logger *zap.Logger, cfg domain.Config, d domain.Display) *mpv.Launcher {
	l := mpv.NewLauncher(logger, cfg, d)
	lc.Append(fx.StopHook(l.Close))
	return l
}

// videoOutput exposes the engine and its two windows, which also carry the banner
type videoOutput struct {
	fx.Out

	Engine  *video.Engine
	Overlay []overlay.TextSurface `group:"overlay,flatten"`
}

func newVideoEngine(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cfg domain.Config,
	res domain.Resolver,
	l *mpv.Launcher,
) (videoOutput, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	a, err := l.OpenSurface(ctx, "video-a")
	if err != nil {
		return videoOutput{}, err
	}
	b, err := l.OpenSurface(ctx, "video-b")
	if err != nil {
		return videoOutput{}, multierr.Append(err, a.Close())
	}

	warmer := fetcher.NewWarmer(logger, res, domain.KindVideo)
	cache := preload.NewCache[fetcher.Asset](logger, warmer.Warm, 0)
	e := video.NewEngine(logger, res, cache, a, b, video.Options{
		FrameRate: cfg.GetFrameRate(),
		Fade:      cfg.GetFadeDuration(),
		Volume:    cfg.GetVolume(),
	})
	lc.Append(fx.StopHook(e.Close))

	return videoOutput{Engine: e, Overlay: []overlay.TextSurface{a, b}}, nil
}

func newAudioEngine(lc fx.Lifecycle, logger *zap.Logger, cfg domain.Config, res domain.Resolver) *audio.Engine {
	decoder := audio.NewDecoder(logger, res)
	cache := preload.NewCache[*audio.Clip](logger, decoder.Decode, 0)
	e := audio.NewEngine(logger, decoder, cache, audio.NewSpeakerSink(), cfg.GetVolume())
	lc.Append(fx.StopHook(e.Close))
	return e
}

// newVisualizer renders the abstract view into an mpv canvas and an operator preview
func newVisualizer(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cfg domain.Config,
	l *mpv.Launcher,
	src *audio.Engine,
) (*visualizer.Visualizer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	size := cfg.GetCanvasSize()
	canvas, err := l.OpenCanvas(ctx, "abstract", size)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(canvas.Close))

	preview := processor.NewPreviewProcessor(logger, cfg)
	v := visualizer.New(logger, src, canvas, visualizer.NewRenderer(size.Width, size.Height),
		cfg.GetFrameRate(), canvas, preview)
	return v, nil
}

type bannerParams struct {
	fx.In

	Logger   *zap.Logger
	Surfaces []overlay.TextSurface `group:"overlay"`
}

func newBanner(p bannerParams) *overlay.Banner {
	return overlay.New(p.Logger, p.Surfaces...)
}

// newHub fans notifications to the event stream and metrics; the D-Bus
// service registers itself once exported
func newHub(logger *zap.Logger, events *httpapi.EventStream, m *metrics.Metrics) *notify.Hub {
	return notify.NewHub(logger, events, m)
}

func newGovernor() *governor.Governor {
	return governor.New(governor.DefaultConfig())
}

func newOrchestrator(
	logger *zap.Logger,
	cfg domain.Config,
	v *video.Engine,
	a *audio.Engine,
	gov *governor.Governor,
	hub *notify.Hub,
	banner *overlay.Banner,
	m *metrics.Metrics,
) *orchestrator.Orchestrator {
	return orchestrator.New(logger, cfg, []domain.MediaEngine{v, a}, gov, hub, banner, m)
}

func newHTTPServer(
	logger *zap.Logger,
	cfg domain.Config,
	ctrl domain.Controller,
	res domain.Resolver,
	banner *overlay.Banner,
	m *metrics.Metrics,
	events *httpapi.EventStream,
) *httpapi.Server {
	return httpapi.NewServer(logger, cfg, ctrl, res, banner, m, events)
}

type hookParams struct {
	fx.In

	Lifecycle    fx.Lifecycle
	Logger       *zap.Logger
	Config       domain.Config
	Orchestrator *orchestrator.Orchestrator
	Visualizer   *visualizer.Visualizer
	Hub          *notify.Hub
	DBus         *dbusapi.Service
	HTTP         *httpapi.Server
}

// registerHooks sets up application lifecycle hooks
func registerHooks(p hookParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Visualizer.Start(ctx); err != nil {
				return err
			}
			if p.Config.DBusEnabled() {
				if err := p.DBus.Start(ctx); err != nil {
					return err
				}
				p.Hub.Register(p.DBus)
			}
			if err := p.HTTP.Start(ctx); err != nil {
				return err
			}
			if err := p.Orchestrator.Start(ctx); err != nil {
				return err
			}
			p.Logger.Info("Participant player started", zap.String("condition", string(p.Config.GetCondition())))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("Shutting down")
			err := p.HTTP.Stop(ctx)
			err = multierr.Append(err, p.DBus.Stop(ctx))
			err = multierr.Append(err, p.Orchestrator.Stop(ctx))
			p.Visualizer.Stop()
			return err
		},
	})
}

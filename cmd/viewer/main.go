package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/holonet-viewer/core"
	"github.com/signalsfoundry/holonet-viewer/internal/config"
	"github.com/signalsfoundry/holonet-viewer/internal/logging"
	"github.com/signalsfoundry/holonet-viewer/internal/observability"
	"github.com/signalsfoundry/holonet-viewer/internal/render"
	"github.com/signalsfoundry/holonet-viewer/model"
	"github.com/signalsfoundry/holonet-viewer/timectrl"
	"github.com/signalsfoundry/holonet-viewer/transport"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	streamURL := flag.String("stream", "", "Websocket endpoint (overrides config)")
	simulate := flag.Bool("simulate", false, "Start in local simulation mode instead of connecting")
	fallback := flag.Bool("poll-fallback", true, "Fall back to HTTP polling when the stream cannot be opened")
	plane := flag.String("plane", "", "Cutting plane: xy, xz, or yz (overrides config)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	if *streamURL != "" {
		cfg.Server.StreamURL = *streamURL
	}
	if *plane != "" {
		cfg.View.Plane = *plane
	}

	var collector *observability.ViewerCollector
	if cfg.Metrics.Enabled {
		collector, err = observability.NewViewerCollector(nil)
		if err != nil {
			log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
			os.Exit(1)
		}
	}
	metricsSrv := serveMetrics(cfg.Metrics.Listen, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	var mgr *transport.Manager
	mgr = transport.New(transport.Options{
		Dialer:      transport.WebsocketDialer{},
		Poller:      transport.NewHTTPPoller(cfg.Server.PollURL, cfg.Server.Token),
		OpenTimeout: cfg.Server.DialTimeout,
		Logger:      log,
		Observer:    collector,
		OnStatus: func(from, to transport.State, err error) {
			// Advertise the viewport on every stream open, including reopens.
			if to == transport.Streaming {
				mgr.SendControl(transport.NewView(cfg.Render.Width, cfg.Render.Height, 0))
			}
		},
	})

	selected, err := model.ParsePlane(cfg.View.Plane)
	if err != nil {
		log.Error(ctx, "invalid plane selection", logging.Err(err))
		os.Exit(1)
	}
	projector := core.NewProjector(core.Viewport{
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
		Margin: 2,
	})
	projector.SetPlane(selected)
	projector.SetSlice(cfg.View.Slice)
	projector.SetTolerance(cfg.View.Tolerance)
	projector.SetStride(cfg.View.Stride)

	renderer := render.NewRenderer(os.Stdout, cfg.Render.Width, cfg.Render.Height, cfg.Render.Color)
	generator := core.NewGenerator(cfg.Render.Simulate)
	interval := time.Duration(float64(time.Second) / cfg.Render.TargetFPS)
	frames := timectrl.NewFrameController(interval, timectrl.Paced)
	loop := render.NewLoop(frames, mgr, generator, projector, renderer, log, frameObserver(collector))

	mgr.SetPollingFallback(*fallback)
	if *simulate {
		mgr.SetSimulation(true)
	} else {
		log.Info(ctx, "connecting", logging.String("endpoint", cfg.Server.StreamURL))
		mgr.Connect(cfg.Server.StreamURL, cfg.Server.Token)
	}

	done := loop.Start()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down viewer")
	loop.Stop()
	<-done
	mgr.Disconnect()
	<-mgr.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

// frameObserver keeps a nil collector from becoming a non-nil interface.
func frameObserver(c *observability.ViewerCollector) render.FrameObserver {
	if c == nil {
		return nil
	}
	return c
}

func serveMetrics(addr string, collector *observability.ViewerCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

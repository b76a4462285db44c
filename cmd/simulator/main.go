package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"route-simulator/internal/api"
	"route-simulator/internal/config"
	"route-simulator/internal/directions"
	"route-simulator/internal/metrics"
	"route-simulator/internal/route"
	"route-simulator/internal/sim"
	"route-simulator/internal/sink"
	"route-simulator/internal/store"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Itinerary: either a persisted record loaded by name, or inline stops
	stops, err := resolveStops(ctx, cfg)
	if err != nil {
		log.Fatalf("itinerary error: %v", err)
	}

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.SpeedMps, cfg.MinStepDelay)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer shutdownHTTP(srv)
	}

	// Directions provider and composer
	dirs, err := directions.NewClient(cfg.DirectionsURL, cfg.DirectionsAPIKey, cfg.DirectionsProfile, cfg.DirectionsTimeout)
	if err != nil {
		log.Fatalf("directions error: %v", err)
	}
	composer := route.NewComposer(dirs)

	// Delivery sink and fan-out dispatcher
	sm := wrapSinkMetrics(mcol)
	natsSink, err := sink.NewNATSSink(cfg.NATSURL, cfg.LogSinkSubjects, sm)
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer natsSink.Close()
	dispatcher := sink.NewDispatcher(natsSink, cfg.Targets, sm)

	engine := sim.NewEngine(dispatcher, cfg.SpeedMps, cfg.MinStepDelay, mcol)

	// Compose the initial route and load it
	path, rm, err := composer.Compose(ctx, stops)
	if err != nil {
		if mcol != nil {
			mcol.CompositionErrs.Inc()
		}
		log.Fatalf("compose route: %v", err)
	}
	if mcol != nil {
		mcol.Compositions.Inc()
	}
	log.Printf("composed route: %d stops, %d dense points, %.0fm, %.0fs",
		len(stops), len(path), rm.DistanceMeters, rm.DurationSeconds)
	if !engine.Load(path, rm) {
		log.Fatalf("load route: composed path too short")
	}
	if cfg.AutoStart {
		engine.Start(ctx)
	}

	// Control surface
	ctrl := api.NewServer(ctx, engine, composer, mcol)
	ctrlSrv := ctrl.Serve(cfg.ControlAddr)

	// Block until context cancelled
	<-ctx.Done()
	// Stop accepting control requests before tearing playback down, so
	// no request can start a scheduler that dispatches into a closed
	// fan-out.
	shutdownHTTP(ctrlSrv)
	engine.Stop()
	dispatcher.Close()
	log.Println("shutdown complete")
}

func resolveStops(ctx context.Context, cfg *config.Config) ([]route.Stop, error) {
	if cfg.RouteName == "" {
		return route.ParseStops(cfg.Stops)
	}
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if err := store.Ping(ctx, db); err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	it, err := store.LoadItinerary(ctx, db, cfg.RouteName)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded itinerary %q (%d waypoints, created %s)",
		it.Name, len(it.Waypoints), it.CreatedAt.Format(time.RFC3339))
	return it.Stops(), nil
}

func shutdownHTTP(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// wrapSinkMetrics adapts the Collector to the SinkMetrics interface.
func wrapSinkMetrics(c *metrics.Collector) sink.SinkMetrics {
	if c == nil {
		return nil
	}
	return &sinkMetrics{c: c}
}

type sinkMetrics struct{ c *metrics.Collector }

func (s *sinkMetrics) DeliveredInc()                   { s.c.Delivered.Inc() }
func (s *sinkMetrics) DeliveryErrInc()                 { s.c.DeliveryErrs.Inc() }
func (s *sinkMetrics) DeliverObserve(d time.Duration)  { s.c.DeliverDuration.Observe(d.Seconds()) }
func (s *sinkMetrics) SinkSetConnected(connected bool) {
	if connected {
		s.c.SinkConnected.Set(1)
	} else {
		s.c.SinkConnected.Set(0)
	}
}

package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	PlaybackActive prometheus.Gauge

	PlaybackStarts      prometheus.Counter
	PlaybackCompletions prometheus.Counter
	StepsEmitted        prometheus.Counter

	Compositions    prometheus.Counter
	CompositionErrs prometheus.Counter

	Delivered     prometheus.Counter
	DeliveryErrs  prometheus.Counter
	SinkConnected prometheus.Gauge

	StepDelay       prometheus.Histogram
	DeliverDuration prometheus.Histogram

	SpeedMps     prometheus.Gauge
	MinStepDelay prometheus.Gauge // seconds
}

func NewCollector(speedMps float64, minStepDelay time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PlaybackActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_playback_active",
			Help: "1 if a playback scheduler is currently running, 0 otherwise.",
		}),
		PlaybackStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_playback_starts_total",
			Help: "Total playback runs started (including resumes).",
		}),
		PlaybackCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_playback_completions_total",
			Help: "Total playbacks that reached the end of their path.",
		}),
		StepsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_steps_emitted_total",
			Help: "Total position steps committed and dispatched.",
		}),
		Compositions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_compositions_total",
			Help: "Total successful route compositions.",
		}),
		CompositionErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_composition_errors_total",
			Help: "Total failed route compositions.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_deliveries_total",
			Help: "Total positions delivered to sinks.",
		}),
		DeliveryErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_delivery_errors_total",
			Help: "Total sink delivery errors.",
		}),
		SinkConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_sink_connected",
			Help: "1 if the sink connection is established, 0 otherwise.",
		}),
		StepDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_step_delay_seconds",
			Help:    "Computed per-step playback delays.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		DeliverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_deliver_duration_seconds",
			Help:    "Duration to marshal and deliver one position.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SpeedMps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_speed_mps",
			Help: "Current playback speed in meters per second.",
		}),
		MinStepDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_min_step_delay_seconds",
			Help: "Minimum per-step delay floor in seconds.",
		}),
	}

	reg.MustRegister(
		c.PlaybackActive,
		c.PlaybackStarts, c.PlaybackCompletions, c.StepsEmitted,
		c.Compositions, c.CompositionErrs,
		c.Delivered, c.DeliveryErrs, c.SinkConnected,
		c.StepDelay, c.DeliverDuration,
		c.SpeedMps, c.MinStepDelay,
	)

	c.SpeedMps.Set(speedMps)
	c.MinStepDelay.Set(minStepDelay.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

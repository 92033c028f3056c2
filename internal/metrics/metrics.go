package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nuclight.org/crossposter/internal/approval"
	"nuclight.org/crossposter/internal/publish"
)

const namespace = "crossposter"

type Metrics struct {
	registry *prometheus.Registry

	candidates  prometheus.Counter
	reactions   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_tracked_total",
			Help:      "Tagged messages registered as candidates.",
		}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_total",
			Help:      "Approval reactions by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Candidate transitions into a terminal status.",
		}, []string{"status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Publisher calls by platform and result.",
		}, []string{"platform", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Publisher call duration.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"platform"}),
	}
	m.registry.MustRegister(
		m.candidates,
		m.reactions,
		m.transitions,
		m.deliveries,
		m.latency,
		collectors.NewGoCollector(),
	)
	return m
}

// TrackPending exports the current number of pending candidates.
func (m *Metrics) TrackPending(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "candidates_pending",
		Help:      "Candidates still collecting approvals.",
	}, func() float64 { return float64(count()) }))
}

func (m *Metrics) CandidateTracked() {
	m.candidates.Inc()
}

func (m *Metrics) ObserveReaction(out approval.ReactionOutcome) {
	m.reactions.WithLabelValues(out.Label()).Inc()
}

// ObserveTransition matches approval.TransitionFunc.
func (m *Metrics) ObserveTransition(c approval.Candidate, _ approval.Status) {
	m.transitions.WithLabelValues(string(c.Status)).Inc()
}

func (m *Metrics) ObserveDispatch(d *publish.Dispatch) {
	for _, r := range d.Results {
		result := "ok"
		if !r.OK() {
			result = "error"
		}
		m.deliveries.WithLabelValues(r.Platform, result).Inc()
		m.latency.WithLabelValues(r.Platform).Observe(r.Duration.Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

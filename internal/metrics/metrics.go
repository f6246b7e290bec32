// Package metrics counts wizard activity for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/wizard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carepath"

// Recorder owns a private registry so several recorders can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	transitions     *prometheus.CounterVec
	invalidSteps    *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	acknowledgments *prometheus.CounterVec
	currentStep     *prometheus.GaugeVec
}

// New creates a recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wizard",
				Name:      "operations_total",
				Help:      "Wizard operations by flow, operation and result",
			},
			[]string{"flow", "op", "result"},
		),
		invalidSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wizard",
				Name:      "invalid_step_total",
				Help:      "Rejected next or submit attempts by flow and step",
			},
			[]string{"flow", "step"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wizard",
				Name:      "submissions_total",
				Help:      "Successful submissions by flow",
			},
			[]string{"flow"},
		),
		acknowledgments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "desk",
				Name:      "acknowledgements_total",
				Help:      "Acknowledgement attempts by flow and result",
			},
			[]string{"flow", "result"},
		),
		currentStep: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "wizard",
				Name:      "current_step",
				Help:      "Current 1-based step of the most recently updated engine per flow",
			},
			[]string{"flow"},
		),
	}
	r.registry.MustRegister(
		r.transitions,
		r.invalidSteps,
		r.submissions,
		r.acknowledgments,
		r.currentStep,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe is a wizard.Observer.
func (r *Recorder) Observe(ev wizard.Event) {
	result := Result(ev.Err)
	r.transitions.WithLabelValues(ev.Flow, string(ev.Op), result).Inc()
	if result == "invalid" {
		r.invalidSteps.WithLabelValues(ev.Flow, strconv.Itoa(ev.Step)).Inc()
	}
	switch {
	case ev.Op == wizard.OpSubmit && ev.Err == nil:
		r.submissions.WithLabelValues(ev.Flow).Inc()
		r.currentStep.WithLabelValues(ev.Flow).Set(1)
	case ev.Op == wizard.OpCancel:
		r.currentStep.WithLabelValues(ev.Flow).Set(1)
	case ev.Op == wizard.OpNext && ev.Err == nil:
		r.currentStep.WithLabelValues(ev.Flow).Set(float64(ev.Step + 1))
	case ev.Op == wizard.OpPrevious && ev.Err == nil:
		r.currentStep.WithLabelValues(ev.Flow).Set(float64(ev.Step - 1))
	}
}

// Acknowledged records the outcome of an acknowledgement.
func (r *Recorder) Acknowledged(flow string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.acknowledgments.WithLabelValues(flow, result).Inc()
}

// Result maps an engine error to a metric label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if ise, ok := wizard.IsInvalidStep(err); ok {
		if ise.Terminal && len(ise.Fields()) == 0 {
			return "terminal"
		}
		return "invalid"
	}
	switch {
	case errors.Is(err, wizard.ErrAtFirstStep):
		return "at_first_step"
	case errors.Is(err, wizard.ErrIncompleteFlow):
		return "incomplete"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

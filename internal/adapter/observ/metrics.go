// Package observ holds the domain Prometheus metrics and the decorators that
// record them around outbound collaborators.
package observ

import (
	"context"
	"time"

	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Persisted order status changes",
		},
		[]string{"from", "to"},
	)

	publishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_status_publish_failures_total",
			Help: "Status change notifications that could not be published",
		},
	)

	assessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_assessments_total",
			Help: "Photo quality assessments by outcome (approved, rejected, error)",
		},
		[]string{"outcome"},
	)

	assessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_assessment_duration_ms",
			Help:    "Duration of quality-assessment calls in ms",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		},
	)

	ordersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders ingested from the storefront by result",
		},
		[]string{"result"},
	)
)

// Publisher counts transitions and wraps an optional downstream publisher.
type Publisher struct {
	next usecase.EventPublisher
}

func NewPublisher(next usecase.EventPublisher) *Publisher { return &Publisher{next: next} }

func (p *Publisher) PublishStatusChanged(ctx context.Context, msg usecase.StatusChangedMsg) error {
	statusTransitions.WithLabelValues(msg.From, msg.To).Inc()
	if p.next == nil {
		return nil
	}
	if err := p.next.PublishStatusChanged(ctx, msg); err != nil {
		publishFailures.Inc()
		return err
	}
	return nil
}

type Assessor struct {
	next usecase.QualityAssessor
}

func NewAssessor(next usecase.QualityAssessor) *Assessor { return &Assessor{next: next} }

func (a *Assessor) Assess(ctx context.Context, img usecase.Upload) (usecase.Verdict, error) {
	start := time.Now()
	v, err := a.next.Assess(ctx, img)
	assessDuration.Observe(float64(time.Since(start).Milliseconds()))
	switch {
	case err != nil:
		assessments.WithLabelValues("error").Inc()
	case v.Approved:
		assessments.WithLabelValues("approved").Inc()
	default:
		assessments.WithLabelValues("rejected").Inc()
	}
	return v, err
}

// ObservePlaced records one ingest attempt.
func ObservePlaced(err error) {
	if err != nil {
		ordersPlaced.WithLabelValues("error").Inc()
		return
	}
	ordersPlaced.WithLabelValues("ok").Inc()
}

var (
	_ usecase.EventPublisher  = (*Publisher)(nil)
	_ usecase.QualityAssessor = (*Assessor)(nil)
)

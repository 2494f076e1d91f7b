package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
)

var _ stock.Metrics = (*Ledger)(nil)

// Ledger contadores Prometheus del libro de stock y de la API HTTP.
type Ledger struct {
	eventsAppended       *prometheus.CounterVec
	idempotentReplays    *prometheus.CounterVec
	idempotencyConflicts *prometheus.CounterVec
	contentionRetries    prometheus.Counter
	insufficientStock    prometheus.Counter
	transferTransitions  *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// NewLedger registra las métricas en registry (DefaultRegisterer si es nil).
func NewLedger(registry prometheus.Registerer) *Ledger {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Ledger{
		eventsAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_events_appended_total",
				Help: "Eventos de stock registrados en el libro",
			},
			[]string{"type"},
		),
		idempotentReplays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_idempotent_replays_total",
				Help: "Solicitudes repetidas respondidas con el resultado original",
			},
			[]string{"scope"},
		),
		idempotencyConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_idempotency_conflicts_total",
				Help: "Claves de idempotencia reusadas con otro payload",
			},
			[]string{"scope"},
		),
		contentionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "stock_balance_contention_retries_total",
			Help: "Reintentos por conflicto de versión sobre un saldo",
		}),
		insufficientStock: factory.NewCounter(prometheus.CounterOpts{
			Name: "stock_insufficient_rejections_total",
			Help: "Lotes rechazados por stock insuficiente",
		}),
		transferTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_transfer_transitions_total",
				Help: "Transiciones de estado de transferencias",
			},
			[]string{"status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duración de las solicitudes HTTP",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Ledger) EventAppended(eventType string) { m.eventsAppended.WithLabelValues(eventType).Inc() }

func (m *Ledger) IdempotentReplay(scope string) { m.idempotentReplays.WithLabelValues(scope).Inc() }

func (m *Ledger) IdempotencyConflict(scope string) {
	m.idempotencyConflicts.WithLabelValues(scope).Inc()
}

func (m *Ledger) ContentionRetry() { m.contentionRetries.Inc() }

func (m *Ledger) InsufficientStock() { m.insufficientStock.Inc() }

func (m *Ledger) TransferTransition(status string) {
	m.transferTransitions.WithLabelValues(status).Inc()
}

// Middleware mide la duración por método, ruta registrada y código de respuesta.
func (m *Ledger) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		m.httpDuration.
			WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

package stock

import (
	"time"

	"github.com/rs/zerolog"
)

type options struct {
	metrics Metrics
	log     zerolog.Logger
	now     func() time.Time
	newKey  func() string
}

// Option configura los servicios del libro.
type Option func(*options)

// WithMetrics registra contadores del libro.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger asigna el logger estructurado.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock reemplaza el reloj del sistema (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithKeyGenerator reemplaza la generación de claves de idempotencia internas.
func WithKeyGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newKey = gen
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		metrics: NoopMetrics(),
		log:     zerolog.Nop(),
		now:     time.Now,
		newKey:  newUUID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

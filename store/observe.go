package store

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// operation tracks one public store call for tracing, metrics and logging.
type operation struct {
	cfg    *Config
	family string
	name   string
	span   trace.Span
	start  time.Time
}

func (c *Config) begin(ctx context.Context, family, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	attrs = append(attrs, attribute.String("strata.family", family))
	ctx, span := c.Tracer.Start(ctx, "strata."+name, trace.WithAttributes(attrs...))
	return ctx, &operation{cfg: c, family: family, name: name, span: span, start: time.Now()}
}

func (o *operation) end(err error) {
	d := time.Since(o.start)
	o.cfg.Metrics.observe(o.family, o.name, d, err)
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}
	o.span.End()
	o.cfg.Logger.Debug("store operation",
		zap.String("family", o.family),
		zap.String("op", o.name),
		zap.Duration("duration", d),
		zap.Error(err),
	)
}

// storeErr wraps a Client error so callers can match ErrStoreFailure and
// the original cause.
func storeErr(call string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, call, err)
}

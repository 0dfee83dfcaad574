package observer

import (
	"context"
	"io"
	"time"

	"github.com/langpipe/langpipe"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedHandler wraps a langpipe.Handler with OTEL instrumentation.
type ObservedHandler struct {
	inner langpipe.Handler
	inst  *Instruments
}

// WrapHandler returns an instrumented handler that emits traces and metrics.
func WrapHandler(inner langpipe.Handler, inst *Instruments) *ObservedHandler {
	return &ObservedHandler{inner: inner, inst: inst}
}

func (o *ObservedHandler) Name() string { return o.inner.Name() }

// WrapRegistry returns a registry whose resolved handlers are instrumented.
func WrapRegistry(inner langpipe.Registry, inst *Instruments) langpipe.Registry {
	return &observedRegistry{inner: inner, inst: inst}
}

type observedRegistry struct {
	inner langpipe.Registry
	inst  *Instruments
}

func (r *observedRegistry) Resolve(model string) (langpipe.HandlerFactory, langpipe.Capability, error) {
	factory, caps, err := r.inner.Resolve(model)
	if err != nil {
		return nil, caps, err
	}
	wrapped := func(apiKey string) langpipe.Handler {
		return WrapHandler(factory(apiKey), r.inst)
	}
	return wrapped, caps, nil
}

func (o *ObservedHandler) Complete(ctx context.Context, req langpipe.Request) (*langpipe.Response, error) {
	attrs := o.requestAttrs(req)
	ctx, span := o.inst.Tracer.Start(ctx, "llm.complete", trace.WithAttributes(attrs...))
	defer span.End()
	start := time.Now()

	resp, err := o.inner.Complete(ctx, req)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	o.inst.LLMRequests.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", status))...))
	o.inst.LLMDuration.Record(ctx, durationMs, metric.WithAttributes(attrs...))
	tokens := 0
	if resp != nil {
		tokens = resp.Usage.TotalTokens
	}
	if tokens > 0 {
		o.inst.TokenUsage.Add(ctx, int64(tokens), metric.WithAttributes(attrs...))
	}
	o.logCall(ctx, "complete", req.Model, status, durationMs, tokens)
	return resp, err
}

// logCall emits one structured OTEL log record per model call.
func (o *ObservedHandler) logCall(ctx context.Context, method, model, status string, durationMs float64, tokens int) {
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("llm call completed"))
	rec.AddAttributes(
		otellog.String("llm.model", model),
		otellog.String("llm.provider", o.inner.Name()),
		otellog.String("llm.method", method),
		otellog.Int("llm.tokens.total", tokens),
		otellog.Float64("llm.duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)
}

func (o *ObservedHandler) Stream(ctx context.Context, req langpipe.Request) (langpipe.ChunkReader, error) {
	attrs := o.requestAttrs(req)
	ctx, span := o.inst.Tracer.Start(ctx, "llm.stream", trace.WithAttributes(attrs...))
	start := time.Now()

	inner, err := o.inner.Stream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		o.inst.LLMRequests.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", "error"))...))
		o.logCall(ctx, "stream", req.Model, "error", float64(time.Since(start).Milliseconds()), 0)
		return nil, err
	}

	o.inst.LLMRequests.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("status", "ok"))...))

	// The span stays open until the stream finishes; the reader wrapper
	// owns ending it.
	return &observedReader{
		inner:   inner,
		handler: o,
		span:    span,
		ctx:     ctx,
		attrs:   attrs,
		model:   req.Model,
		start:   start,
	}, nil
}

func (o *ObservedHandler) requestAttrs(req langpipe.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrLLMModel.String(req.Model),
		AttrLLMProvider.String(o.inner.Name()),
	}
	if len(req.Tools) > 0 {
		names := make([]string, len(req.Tools))
		for i, t := range req.Tools {
			names[i] = t.Name
		}
		attrs = append(attrs, AttrToolCount.Int(len(req.Tools)), AttrToolNames.StringSlice(names))
	}
	return attrs
}

// observedReader counts chunks and closes the stream span exactly once,
// on EOF, error, or Close.
type observedReader struct {
	inner   langpipe.ChunkReader
	handler *ObservedHandler
	span    trace.Span
	ctx     context.Context
	attrs   []attribute.KeyValue
	model   string
	start   time.Time
	chunks  int64
	ended   bool
}

func (r *observedReader) Recv() (langpipe.Chunk, error) {
	chunk, err := r.inner.Recv()
	switch err {
	case nil:
		r.chunks++
	case io.EOF:
		r.end(nil)
	default:
		r.end(err)
	}
	return chunk, err
}

func (r *observedReader) Close() error {
	err := r.inner.Close()
	r.end(nil)
	return err
}

func (r *observedReader) end(err error) {
	if r.ended {
		return
	}
	r.ended = true
	status := "ok"
	if err != nil {
		status = "error"
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	}
	r.span.SetAttributes(attribute.Int64("llm.stream.chunk_count", r.chunks))
	r.span.End()

	inst := r.handler.inst
	durationMs := float64(time.Since(r.start).Milliseconds())
	inst.StreamChunks.Add(r.ctx, r.chunks, metric.WithAttributes(r.attrs...))
	inst.LLMDuration.Record(r.ctx, durationMs, metric.WithAttributes(r.attrs...))
	r.handler.logCall(r.ctx, "stream", r.model, status, durationMs, 0)
}

var _ langpipe.Handler = (*ObservedHandler)(nil)

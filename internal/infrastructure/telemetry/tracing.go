package telemetry

import (
	"context"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer for pipeline spans
const TracerName = "catalog-pipeline"

// Span attribute keys
const (
	SpanAttrJobID       = "job.id"
	SpanAttrJobType     = "job.type"
	SpanAttrJobAttempt  = "job.attempt"
	SpanAttrJobMax      = "job.max_attempts"
	SpanAttrPermanent   = "job.permanent_failure"
	SpanAttrProvider    = "marketplace.provider"
	SpanAttrCategoryID  = "marketplace.category_id"
	SpanAttrProductID   = "marketplace.product_id"
	SpanAttrOffset      = "marketplace.offset"
	SpanAttrResultCount = "marketplace.results"
)

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// RecordError marks span failed with err; nil is ignored
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceJobs wraps a queue handler so every run gets its own consumer span
func TraceJobs(next queue.Handler) queue.Handler {
	return func(ctx context.Context, job *shared.Job) error {
		ctx, span := tracer().Start(ctx, "job."+job.Type,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String(SpanAttrJobID, job.ID.String()),
				attribute.String(SpanAttrJobType, job.Type),
				attribute.Int(SpanAttrJobAttempt, job.Attempts),
				attribute.Int(SpanAttrJobMax, job.MaxAttempts),
			),
		)
		defer span.End()

		err := next(ctx, job)
		if err != nil {
			span.SetAttributes(attribute.Bool(SpanAttrPermanent, queue.IsPermanent(err)))
			RecordError(span, err)
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}
}

// TraceClient wraps a marketplace client with one client span per upstream call
func TraceClient(next marketplace.Client) marketplace.Client {
	return &tracedClient{next: next}
}

type tracedClient struct {
	next marketplace.Client
}

func (c *tracedClient) Provider() marketplace.Provider { return c.next.Provider() }

func (c *tracedClient) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(SpanAttrProvider, c.next.Provider().String()))
	return tracer().Start(ctx, "marketplace."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (c *tracedClient) ListCategories(ctx context.Context) ([]marketplace.Category, error) {
	ctx, span := c.start(ctx, "list_categories")
	defer span.End()

	categories, err := c.next.ListCategories(ctx)
	RecordError(span, err)
	span.SetAttributes(attribute.Int(SpanAttrResultCount, len(categories)))
	return categories, err
}

func (c *tracedClient) ListProductsByCategory(ctx context.Context, categoryID string, offset, limit int) (*marketplace.ProductPage, error) {
	ctx, span := c.start(ctx, "list_products",
		attribute.String(SpanAttrCategoryID, categoryID),
		attribute.Int(SpanAttrOffset, offset),
	)
	defer span.End()

	page, err := c.next.ListProductsByCategory(ctx, categoryID, offset, limit)
	RecordError(span, err)
	if page != nil {
		span.SetAttributes(attribute.Int(SpanAttrResultCount, len(page.Results)))
	}
	return page, err
}

func (c *tracedClient) GetProduct(ctx context.Context, productID string) (marketplace.RawItem, error) {
	ctx, span := c.start(ctx, "get_product", attribute.String(SpanAttrProductID, productID))
	defer span.End()

	item, err := c.next.GetProduct(ctx, productID)
	RecordError(span, err)
	return item, err
}

func (c *tracedClient) Search(ctx context.Context, query marketplace.SearchQuery) (*marketplace.SearchPage, error) {
	ctx, span := c.start(ctx, "search")
	defer span.End()

	page, err := c.next.Search(ctx, query)
	RecordError(span, err)
	if page != nil {
		span.SetAttributes(attribute.Int(SpanAttrResultCount, len(page.Items)))
	}
	return page, err
}

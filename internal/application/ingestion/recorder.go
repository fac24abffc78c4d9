package ingestion

import "context"

// Recorder receives pipeline measurements
type Recorder interface {
	ItemsDropped(ctx context.Context, provider string, n int)
	ProductUpserted(ctx context.Context, created bool)
	ProductDeleted(ctx context.Context, reason string)
}

type nopRecorder struct{}

func (nopRecorder) ItemsDropped(context.Context, string, int) {}
func (nopRecorder) ProductUpserted(context.Context, bool)     {}
func (nopRecorder) ProductDeleted(context.Context, string)    {}

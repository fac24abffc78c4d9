package queue

import (
	"context"
	"time"
)

// Observer receives job lifecycle notifications, typically to record metrics
type Observer interface {
	JobEnqueued(ctx context.Context, jobType string)
	JobCompleted(ctx context.Context, jobType string, elapsed time.Duration)
	JobRetried(ctx context.Context, jobType string)
	JobDead(ctx context.Context, jobType string)
}

type nopObserver struct{}

func (nopObserver) JobEnqueued(context.Context, string)                 {}
func (nopObserver) JobCompleted(context.Context, string, time.Duration) {}
func (nopObserver) JobRetried(context.Context, string)                  {}
func (nopObserver) JobDead(context.Context, string)                     {}

// Package queue is a durable, database-backed job queue.
//
// Jobs are rows in the jobs table. Workers claim due jobs with a
// compare-and-set status update (plus FOR UPDATE SKIP LOCKED on postgres),
// so delivery is at-least-once: a job whose worker dies is recovered by the
// janitor and runs again. Handlers must therefore be idempotent.
//
// Failed jobs are rescheduled with exponential backoff and become DEAD once
// their attempts are exhausted. Dead jobs are retained until retried by an
// operator.
package queue

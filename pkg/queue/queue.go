package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmails is the Redis list key for email jobs.
	QueueEmails = "checkin:emails"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "checkin:dlq"
	// MaxRetries is the number of attempts before a job moves to the DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

// JobTypeTicketEmail issues a fresh ticket for a participant and emails it.
const JobTypeTicketEmail JobType = "ticket_email"

// TicketEmailPayload is the payload for ticket email jobs.
type TicketEmailPayload struct {
	UniqueID string `json:"unique_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueTicketEmails enqueues one ticket email job per unique id in a single round trip.
func (q *Queue) EnqueueTicketEmails(ctx context.Context, uniqueIDs []string) error {
	if len(uniqueIDs) == 0 {
		return nil
	}
	raws := make([]interface{}, 0, len(uniqueIDs))
	for _, id := range uniqueIDs {
		body, err := json.Marshal(TicketEmailPayload{UniqueID: id})
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		raw, err := json.Marshal(Job{
			ID:        uuid.New().String(),
			Type:      JobTypeTicketEmail,
			Payload:   body,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		raws = append(raws, raw)
	}
	if err := q.client.RPush(ctx, QueueEmails, raws...).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued ticket email jobs", zap.Int("count", len(raws)))
	return nil
}

// Dequeue blocks up to timeout for a job. It returns nil, nil when the wait times out or the
// entry could not be decoded.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueEmails).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. Once attempt reaches MaxRetries it goes to the
// DLQ instead. It reports whether the job was dead-lettered.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) (bool, error) {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	if err := q.client.RPush(ctx, QueueEmails, raw).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// Depth returns the number of pending and dead-lettered jobs.
func (q *Queue) Depth(ctx context.Context) (pending, dead int64, err error) {
	if pending, err = q.client.LLen(ctx, QueueEmails).Result(); err != nil {
		return 0, 0, err
	}
	if dead, err = q.client.LLen(ctx, QueueDLQ).Result(); err != nil {
		return 0, 0, err
	}
	return pending, dead, nil
}

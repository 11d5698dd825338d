package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/emaillogs"
	"github.com/aura-checkin/backend/internal/mailer"
	"github.com/aura-checkin/backend/internal/metrics"
	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/internal/ticket"
	"github.com/aura-checkin/backend/pkg/queue"
)

// ErrPermanent marks a job failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

// Issuer mints a fresh ticket for a participant.
type Issuer interface {
	Issue(ctx context.Context, identity string) (ticket.Ticket, error)
}

// EmailProcessor processes ticket email jobs: issue a fresh ticket, render the QR code, send it and
// record the outcome in the email log.
type EmailProcessor struct {
	issuer     Issuer
	sender     mailer.Sender
	logs       emaillogs.Store
	queue      *queue.Queue
	eventName  string
	retryDelay time.Duration
	pollWait   time.Duration
	logger     *zap.Logger
}

// NewEmailProcessor creates a ticket email processor.
func NewEmailProcessor(issuer Issuer, sender mailer.Sender, logs emaillogs.Store, q *queue.Queue, eventName string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		issuer:     issuer,
		sender:     sender,
		logs:       logs,
		queue:      q,
		eventName:  eventName,
		retryDelay: queue.RetryBackoff,
		pollWait:   5 * time.Second,
		logger:     logger,
	}
}

// Process executes one ticket email job. Failures are recorded in the email log before returning.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTicketEmail {
		return fmt.Errorf("%w: unknown job type %q", ErrPermanent, job.Type)
	}
	var payload queue.TicketEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %w", ErrPermanent, err)
	}

	tk, err := p.issuer.Issue(ctx, payload.UniqueID)
	if err != nil {
		if errors.Is(err, ticket.ErrParticipantNotFound) || errors.Is(err, ticket.ErrAlreadyCheckedIn) {
			p.record(ctx, payload.UniqueID, "", err)
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return fmt.Errorf("issue ticket: %w", err)
	}

	png, err := ticket.RenderPNG(tk.Payload, ticket.DefaultQRSize)
	if err != nil {
		p.record(ctx, tk.UniqueID, tk.Email, err)
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	msg, err := mailer.RenderTicket(tk.Email, mailer.TicketData{EventName: p.eventName, Name: tk.Name, UniqueID: tk.UniqueID}, png)
	if err != nil {
		p.record(ctx, tk.UniqueID, tk.Email, err)
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		p.record(ctx, tk.UniqueID, tk.Email, err)
		return err
	}

	p.record(ctx, tk.UniqueID, tk.Email, nil)
	p.logger.Info("ticket email sent", zap.String("unique_id", tk.UniqueID))
	return nil
}

func (p *EmailProcessor) record(ctx context.Context, uniqueID, email string, sendErr error) {
	entry := &models.EmailLog{
		ParticipantUniqueID: uniqueID,
		RecipientEmail:      email,
		Status:              models.EmailLogStatusSuccess,
	}
	if sendErr != nil {
		entry.Status = models.EmailLogStatusError
		entry.ErrorMessage = sendErr.Error()
	}
	metrics.EmailsSent.WithLabelValues(entry.Status).Inc()
	if err := p.logs.Append(ctx, entry); err != nil {
		p.logger.Error("append email log failed", zap.String("unique_id", uniqueID), zap.Error(err))
	}
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *EmailProcessor) Run(ctx context.Context) {
	p.logger.Info("email worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, p.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx, p.retryDelay)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if errors.Is(err, ErrPermanent) {
				continue
			}
			if _, reErr := p.queue.Retry(ctx, job, err); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx, p.retryDelay)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

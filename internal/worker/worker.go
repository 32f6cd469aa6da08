package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-meet/engagement/internal/meetings"
	"github.com/aura-meet/engagement/internal/participants"
	"github.com/aura-meet/engagement/pkg/queue"
)

// ArchiveProcessor processes meeting archive jobs: verify the final
// summary is persisted, then prune the meeting's raw status samples.
type ArchiveProcessor struct {
	meetings     *meetings.Repository
	participants *participants.Repository
	queue        *queue.Queue
	logger       *zap.Logger
}

// NewArchiveProcessor creates a meeting archive processor.
func NewArchiveProcessor(meetingRepo *meetings.Repository, partRepo *participants.Repository, q *queue.Queue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{meetings: meetingRepo, participants: partRepo, queue: q, logger: logger}
}

// Process executes one archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMeetingArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MeetingArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	// Raw samples stay until the rollup exists, so a failed finalize can
	// be recomputed.
	if _, err := p.meetings.GetSummary(ctx, payload.MeetingID); err != nil {
		if errors.Is(err, meetings.ErrNotFound) {
			return fmt.Errorf("summary not persisted yet for meeting %s", payload.MeetingID)
		}
		return fmt.Errorf("load summary: %w", err)
	}

	pruned, err := p.participants.PruneSamples(ctx, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("prune samples: %w", err)
	}
	p.logger.Info("meeting archived",
		zap.String("meeting_id", payload.MeetingID.String()),
		zap.Int64("samples_pruned", pruned))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			_ = p.queue.Retry(ctx, job)
		}
	}
}

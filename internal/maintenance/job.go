package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/devedd/neurochat/internal/common"
)

type JobKind string

const KindDeactivateStaleUsers JobKind = "deactivate_stale_users"

// Job is the message the scheduler publishes and the worker consumes.
type Job struct {
	ID          string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewJob(kind JobKind) (Job, error) {
	id, err := common.NewULID()
	if err != nil {
		return Job{}, err
	}
	return Job{ID: id, Kind: kind, RequestedAt: time.Now().UTC()}, nil
}

// Handle runs one job. Unknown kinds are an error so the broker dead-letters them.
func (s *Sweeper) Handle(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindDeactivateStaleUsers:
		_, err := s.DeactivateStaleUsers(ctx, time.Now().UTC())
		return err
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

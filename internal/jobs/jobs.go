// Package jobs runs chat turns asynchronously: the gateway records a job and
// publishes its id, the worker claims it and drives the orchestrator.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FrK06/web-rag-original/internal/chat"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/orchestrator"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxIdempotencyKey = 128

var ErrJobNotFound = fmt.Errorf("%w: job not found", common.ErrNotFound)

// Publisher is satisfied by *rabbitmq.Publisher.
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// View is the client-facing shape of a job.
type View struct {
	ID        string                 `json:"id"`
	Status    chat.JobStatus         `json:"status"`
	Result    *orchestrator.Envelope `json:"result,omitempty"`
	Error     *string                `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type Service struct {
	repo *chat.Repo
	pub  Publisher
	log  logrus.FieldLogger
}

func NewService(repo *chat.Repo, pub Publisher, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, pub: pub, log: log}
}

// Submit records a queued job and publishes it. With an idempotency key a
// repeated submission returns the existing job and publishes nothing.
func (s *Service) Submit(ctx context.Context, owner string, req orchestrator.Request, idempotencyKey string) (*chat.Job, bool, error) {
	if s.pub == nil {
		return nil, false, fmt.Errorf("%w: job queue is not configured", common.ErrUpstreamUnavailable)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, false, fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > maxIdempotencyKey {
		return nil, false, fmt.Errorf("%w: idempotency key too long", common.ErrValidation)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, false, err
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	j := &chat.Job{
		ID:      id,
		UserID:  owner,
		Request: string(body),
		Status:  chat.JobQueued,
	}
	if idempotencyKey != "" {
		j.IdempotencyKey = &idempotencyKey
	}

	job, created, err := s.repo.CreateJobOrGetExisting(ctx, j)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return job, false, nil
	}

	if err := s.pub.PublishJob(ctx, job.ID); err != nil {
		s.log.WithError(err).WithField("job_id", job.ID).Error("jobs: publish failed")
		msg := "enqueue failed"
		if markErr := s.repo.MarkJobFailed(ctx, job.ID, msg); markErr != nil {
			s.log.WithError(markErr).WithField("job_id", job.ID).Warn("jobs: mark unpublished job failed")
		}
		return nil, false, fmt.Errorf("%w: %s", common.ErrUpstreamUnavailable, msg)
	}
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "user_id": owner}).Info("jobs: queued")
	return job, true, nil
}

// Get returns the owner's job. Jobs of other users look missing.
func (s *Service) Get(ctx context.Context, owner, id string) (*View, error) {
	j, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if j.UserID != owner {
		return nil, ErrJobNotFound
	}
	v := &View{
		ID:        j.ID,
		Status:    j.Status,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Result != nil && *j.Result != "" {
		var env orchestrator.Envelope
		if err := json.Unmarshal([]byte(*j.Result), &env); err == nil {
			v.Result = &env
		}
	}
	return v, nil
}

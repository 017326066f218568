package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FrK06/web-rag-original/internal/chat"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/orchestrator"
	"github.com/FrK06/web-rag-original/internal/store/rabbitmq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Chatter is satisfied by *orchestrator.Orchestrator.
type Chatter interface {
	Chat(ctx context.Context, owner string, req orchestrator.Request) (*orchestrator.Envelope, error)
}

type Runner struct {
	repo    *chat.Repo
	chat    Chatter
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewRunner(repo *chat.Repo, c Chatter, timeout time.Duration, log logrus.FieldLogger) *Runner {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Runner{repo: repo, chat: c, timeout: timeout, log: log}
}

// Handle runs one job to completion. Redeliveries of a job that was already
// claimed are acknowledged without running it again.
func (r *Runner) Handle(ctx context.Context, msg rabbitmq.JobMessage) error {
	jobStart := time.Now()
	entry := r.log.WithField("job_id", msg.JobID)

	claimed, err := r.repo.ClaimJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if !claimed {
		entry.Info("jobs: already claimed, skipping")
		return nil
	}

	j, err := r.repo.GetJobByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	var req orchestrator.Request
	if err := json.Unmarshal([]byte(j.Request), &req); err != nil {
		return r.fail(ctx, entry, j.ID, fmt.Errorf("%w: unreadable job request", common.ErrValidation))
	}

	turnCtx, cancel := context.WithTimeout(ctx, r.timeout)
	env, err := r.chat.Chat(turnCtx, j.UserID, req)
	cancel()
	genCost := time.Since(jobStart)
	if err != nil {
		return r.fail(ctx, entry.WithField("gen", genCost.String()), j.ID, err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return r.fail(ctx, entry, j.ID, err)
	}
	if err := r.repo.MarkJobSucceeded(ctx, j.ID, string(body)); err != nil {
		return err
	}

	entry.WithFields(logrus.Fields{
		"thread_id": env.ThreadID,
		"gen":       genCost.String(),
		"total":     time.Since(jobStart).String(),
	}).Info("jobs: succeeded")
	return nil
}

func (r *Runner) fail(ctx context.Context, entry logrus.FieldLogger, jobID string, cause error) error {
	if err := r.repo.MarkJobFailed(ctx, jobID, cause.Error()); err != nil {
		entry.WithError(err).Warn("jobs: mark failed")
	}
	entry.WithError(cause).Warn("jobs: failed")
	return cause
}

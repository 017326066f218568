package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transaction runs fn with a Repo bound to a single transaction.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

func (r *Repo) CreateThread(ctx context.Context, t *Thread) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var t Thread
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) TouchThread(ctx context.Context, threadID string, lastActivity, expiresAt int64) error {
	return r.db.WithContext(ctx).Model(&Thread{}).
		Where("thread_id = ?", threadID).
		Updates(map[string]any{
			"last_activity": lastActivity,
			"expires_at":    expiresAt,
		}).Error
}

func (r *Repo) RenameThread(ctx context.Context, threadID, title string, lastActivity, expiresAt int64) error {
	return r.db.WithContext(ctx).Model(&Thread{}).
		Where("thread_id = ?", threadID).
		Updates(map[string]any{
			"title":         title,
			"last_activity": lastActivity,
			"expires_at":    expiresAt,
		}).Error
}

// DeleteThread removes the thread and all of its messages.
func (r *Repo) DeleteThread(ctx context.Context, threadID string) error {
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&Message{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&Thread{}).Error
}

// ListLiveThreads returns the owner's unexpired threads, most recent activity first.
func (r *Repo) ListLiveThreads(ctx context.Context, userID string, now int64, limit, offset int) ([]Thread, error) {
	var out []Thread
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("last_activity DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ExpiredThreadIDs(ctx context.Context, now int64, limit int) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&Thread{}).
		Where("expires_at <= ?", now).
		Limit(limit).
		Pluck("thread_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repo) DeleteThreads(ctx context.Context, threadIDs []string) error {
	if len(threadIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("thread_id IN ?", threadIDs).Delete(&Message{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("thread_id IN ?", threadIDs).Delete(&Thread{}).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListRecentMessagesDesc returns the most recent messages in DESC id order (newest -> oldest).
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, threadID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) LastMessage(ctx context.Context, threadID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id DESC").
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ClaimJob moves a queued job to running. It reports false when another
// delivery already claimed it.
func (r *Repo) ClaimJob(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, result string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobSucceeded,
			"result": result,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
			"result": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID string, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id, idempotency_key) already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

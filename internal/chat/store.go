package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrThreadNotFound = fmt.Errorf("%w: thread not found", common.ErrNotFound)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	titleRunes     = 50
	previewRunes   = 60
	defaultHistory = 100
	maxSeedTurns   = 20
)

// Turn is a prior exchange supplied by a client.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type StoreResult struct {
	ThreadID string    `json:"thread_id"`
	History  []Message `json:"history"`
}

// Store is the conversation log. Threads expire after the retention window
// without activity; an expired thread behaves exactly like an unknown one.
type Store struct {
	repo          *Repo
	retention     time.Duration
	historyWindow int
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewStore(repo *Repo, retention time.Duration, historyWindow int, log logrus.FieldLogger) *Store {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if historyWindow <= 0 || historyWindow > 100 {
		historyWindow = 10
	}
	return &Store{repo: repo, retention: retention, historyWindow: historyWindow, log: log, now: time.Now}
}

func NewThreadID() string {
	return "thread_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func previewOf(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes-3]) + "..."
}

// liveThread loads threadID for owner. Expired and foreign threads are not found.
func (s *Store) liveThread(ctx context.Context, r *Repo, owner, threadID string) (*Thread, error) {
	th, err := r.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	if th.UserID != owner || th.ExpiresAt <= s.now().UnixNano() {
		return nil, ErrThreadNotFound
	}
	return th, nil
}

// Store appends a user message, creating the thread when threadID is empty,
// unknown or expired. It returns the trimmed recent history.
func (s *Store) Store(ctx context.Context, owner, threadID, content string, history []Turn) (*StoreResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message is empty", common.ErrValidation)
	}
	if threadID == "" {
		threadID = NewThreadID()
	}

	now := s.now().UTC()
	expires := now.Add(s.retention).UnixNano()

	var recent []Message
	err := s.repo.Transaction(ctx, func(tx *Repo) error {
		th, err := tx.GetThread(ctx, threadID)
		fresh := false
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fresh = true
		case err != nil:
			return err
		case th.UserID != owner:
			return ErrThreadNotFound
		case th.ExpiresAt <= now.UnixNano():
			// expired: start over under the same id
			if err := tx.DeleteThread(ctx, threadID); err != nil {
				return err
			}
			fresh = true
		}

		if fresh {
			if err := tx.CreateThread(ctx, &Thread{
				ThreadID:     threadID,
				UserID:       owner,
				Title:        truncateRunes(strings.TrimSpace(content), titleRunes),
				LastActivity: now.UnixNano(),
				ExpiresAt:    expires,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
			if err := s.seed(ctx, tx, threadID, history, now); err != nil {
				return err
			}
		}

		if err := tx.InsertMessage(ctx, &Message{
			ThreadID:  threadID,
			Role:      RoleUser,
			Content:   content,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := tx.TouchThread(ctx, threadID, now.UnixNano(), expires); err != nil {
			return err
		}

		desc, err := tx.ListRecentMessagesDesc(ctx, threadID, s.historyWindow)
		if err != nil {
			return err
		}
		recent = reverse(desc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &StoreResult{ThreadID: threadID, History: recent}, nil
}

func (s *Store) seed(ctx context.Context, tx *Repo, threadID string, history []Turn, now time.Time) error {
	if len(history) > maxSeedTurns {
		history = history[len(history)-maxSeedTurns:]
	}
	for _, t := range history {
		if (t.Role != RoleUser && t.Role != RoleAssistant) || strings.TrimSpace(t.Content) == "" {
			continue
		}
		if err := tx.InsertMessage(ctx, &Message{
			ThreadID:  threadID,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Update appends the assistant reply. It fails with ErrThreadNotFound if the
// thread is gone.
func (s *Store) Update(ctx context.Context, owner, threadID, content string, meta *MessageMetadata) error {
	now := s.now().UTC()
	return s.repo.Transaction(ctx, func(tx *Repo) error {
		if _, err := s.liveThread(ctx, tx, owner, threadID); err != nil {
			return err
		}
		if err := tx.InsertMessage(ctx, &Message{
			ThreadID:  threadID,
			Role:      RoleAssistant,
			Content:   content,
			Metadata:  meta,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.TouchThread(ctx, threadID, now.UnixNano(), now.Add(s.retention).UnixNano())
	})
}

// History returns up to limit most recent messages, oldest first.
func (s *Store) History(ctx context.Context, owner, threadID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultHistory
	}
	if _, err := s.liveThread(ctx, s.repo, owner, threadID); err != nil {
		return nil, err
	}
	desc, err := s.repo.ListRecentMessagesDesc(ctx, threadID, limit)
	if err != nil {
		return nil, err
	}
	return reverse(desc), nil
}

func (s *Store) List(ctx context.Context, owner string, limit, skip int) ([]ThreadSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	threads, err := s.repo.ListLiveThreads(ctx, owner, s.now().UnixNano(), limit, skip)
	if err != nil {
		return nil, err
	}

	out := make([]ThreadSummary, 0, len(threads))
	for _, th := range threads {
		preview := th.Title
		if preview == "" {
			if m, err := s.repo.LastMessage(ctx, th.ThreadID); err == nil {
				preview = m.Content
			}
		}
		out = append(out, ThreadSummary{
			ThreadID:    th.ThreadID,
			Title:       th.Title,
			Preview:     previewOf(preview),
			LastUpdated: th.LastUpdated(),
			CreatedAt:   th.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) Rename(ctx context.Context, owner, threadID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", common.ErrValidation)
	}
	now := s.now().UTC()
	if _, err := s.liveThread(ctx, s.repo, owner, threadID); err != nil {
		return err
	}
	return s.repo.RenameThread(ctx, threadID, truncateRunes(name, 255), now.UnixNano(), now.Add(s.retention).UnixNano())
}

func (s *Store) Delete(ctx context.Context, owner, threadID string) error {
	if _, err := s.liveThread(ctx, s.repo, owner, threadID); err != nil {
		return err
	}
	return s.repo.DeleteThread(ctx, threadID)
}

// PurgeExpired deletes expired threads in batches and returns how many went.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	total := 0
	for {
		ids, err := s.repo.ExpiredThreadIDs(ctx, s.now().UnixNano(), 500)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		if err := s.repo.DeleteThreads(ctx, ids); err != nil {
			return total, err
		}
		total += len(ids)
		if len(ids) < 500 {
			return total, nil
		}
	}
}

// RunPurger calls PurgeExpired every interval until ctx ends.
func (s *Store) RunPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.WithError(err).Warn("chat: purge expired threads failed")
				continue
			}
			if n > 0 {
				s.log.WithField("threads", n).Info("chat: purged expired threads")
			}
		}
	}
}

func reverse(desc []Message) []Message {
	out := make([]Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		out = append(out, desc[i])
	}
	return out
}

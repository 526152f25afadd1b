package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrLinkNotFound    = errors.New("task link not found")
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transaction runs fn against a repo bound to one database transaction.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetSession returns the session only when userID owns it.
func (r *Repo) GetSession(ctx context.Context, userID, sessionID uint64) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns the user's sessions, most recently active first.
func (r *Repo) ListSessions(ctx context.Context, userID uint64) ([]Session, error) {
	var out []Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) UpdateSessionTitle(ctx context.Context, userID, sessionID uint64, title string) error {
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND user_id = ?", sessionID, userID).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// unchanged title also reports zero rows on mysql
		_, err := r.GetSession(ctx, userID, sessionID)
		return err
	}
	return nil
}

// TouchSession bumps updated_at so the session sorts first in listings.
func (r *Repo) TouchSession(ctx context.Context, sessionID uint64) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Update("updated_at", time.Now()).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns messages in DESC id order (newest -> oldest).
func (r *Repo) ListMessages(ctx context.Context, userID, sessionID uint64, limit int, beforeID uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentMessagesDesc returns the most recent messages in DESC id order (newest -> oldest).
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, userID, sessionID uint64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.ListMessages(ctx, userID, sessionID, limit, 0)
}

func (r *Repo) CreateLink(ctx context.Context, l *TaskLink) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *Repo) GetLinkByTaskID(ctx context.Context, taskID string) (*TaskLink, error) {
	var l TaskLink
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SetLinkStatus moves a link that is not yet final. It reports whether the row
// changed, so exactly one caller wins the move to a final status.
func (r *Repo) SetLinkStatus(ctx context.Context, taskID string, to LinkStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&TaskLink{}).
		Where("task_id = ? AND status NOT IN ?", taskID, []LinkStatus{LinkCompleted, LinkFailed}).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repo) SetLinkResultMessage(ctx context.Context, taskID string, messageID uint64) error {
	return r.db.WithContext(ctx).Model(&TaskLink{}).
		Where("task_id = ?", taskID).
		Update("result_message_id", messageID).Error
}

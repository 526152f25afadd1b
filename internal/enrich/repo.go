package enrich

import (
	"context"

	"gorm.io/gorm"
)

// Sink receives each accepted profile as soon as it is scored.
type Sink interface {
	Save(ctx context.Context, p *AnalyzedProfile) error
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Save(ctx context.Context, p *AnalyzedProfile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// ListByTask returns a task's profiles in the order they were persisted.
func (r *Repo) ListByTask(ctx context.Context, taskID string) ([]AnalyzedProfile, error) {
	var out []AnalyzedProfile
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

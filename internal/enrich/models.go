package enrich

import (
	"time"

	"gorm.io/datatypes"
)

// AnalyzedProfile is one relevance-passing profile of a task. Rows are written
// as profiles are scored, so a later failure keeps earlier rows.
type AnalyzedProfile struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"-"`
	TaskID          string         `gorm:"type:varchar(64);index;not null" json:"taskId"`
	Platform        string         `gorm:"type:varchar(16);not null" json:"platform"`
	Account         string         `gorm:"type:varchar(128);not null" json:"account"`
	ProfileURL      string         `gorm:"type:varchar(512)" json:"profileUrl"`
	Followers       int64          `json:"followers"`
	IsPrivate       bool           `json:"isPrivate"`
	AnalysisSummary string         `gorm:"type:text" json:"analysisSummary"`
	AnalysisScore   int            `json:"analysisScore"`
	Relevance       int            `json:"relevance"`
	Raw             datatypes.JSON `json:"raw,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func (AnalyzedProfile) TableName() string { return "analyzed_profiles" }

package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// predecessors lists the statuses a row may hold when moving to the key status.
var predecessors = map[Status][]Status{
	StatusRunning:   {StatusPending},
	StatusCompleted: {StatusRunning},
	StatusFailed:    {StatusPending, StatusRunning},
}

// Topic names one of the four intents a task can run. It doubles as the queue suffix.
type Topic string

const (
	TopicInstagramSearch   Topic = "instagram.search"
	TopicTikTokSearch      Topic = "tiktok.search"
	TopicInstagramAnalysis Topic = "instagram.analysis"
	TopicTikTokAnalysis    Topic = "tiktok.analysis"
)

var AllTopics = []Topic{
	TopicInstagramSearch,
	TopicTikTokSearch,
	TopicInstagramAnalysis,
	TopicTikTokAnalysis,
}

const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"

	KindSearch   = "search"
	KindAnalysis = "analysis"
)

// TopicFor maps (platform, kind) to a topic. "profile" is accepted as an alias of "analysis".
func TopicFor(platform, kind string) (Topic, bool) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "profile" {
		kind = KindAnalysis
	}
	t := Topic(platform + "." + kind)
	for _, known := range AllTopics {
		if known == t {
			return t, true
		}
	}
	return "", false
}

func (t Topic) Platform() string {
	p, _, _ := strings.Cut(string(t), ".")
	return p
}

func (t Topic) Kind() string {
	_, k, _ := strings.Cut(string(t), ".")
	return k
}

func (t Topic) IsSearch() bool { return t.Kind() == KindSearch }

// Endpoint renders the topic the way chat intent markers spell it: /instagram/search.
func (t Topic) Endpoint() string {
	return "/" + t.Platform() + "/" + t.Kind()
}

// Input is the job argument. Search topics carry Query, analysis topics carry Profile.
type Input struct {
	Query   string `json:"query,omitempty"`
	Profile string `json:"profile,omitempty"`
}

type Task struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	TaskID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"taskId"`
	UserID uint64 `gorm:"index;not null" json:"-"`
	Topic  Topic  `gorm:"type:varchar(32);index;not null" json:"topic"`

	Input datatypes.JSON `json:"input,omitempty"`

	Status Status `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when completed
	Result *string `gorm:"type:longtext" json:"result,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Task) TableName() string { return "tasks" }

func (t *Task) SetInput(in Input) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode task input: %w", err)
	}
	t.Input = datatypes.JSON(b)
	return nil
}

func (t *Task) DecodeInput() (Input, error) {
	var in Input
	if len(t.Input) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(t.Input, &in); err != nil {
		return in, fmt.Errorf("decode task input: %w", err)
	}
	return in, nil
}

// Patch is a status change plus the fields its writer owns. Nil fields are left untouched.
type Patch struct {
	Status      Status
	Result      *string
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func Running(at time.Time) Patch {
	return Patch{Status: StatusRunning, StartedAt: &at}
}

func Completed(result string, at time.Time) Patch {
	return Patch{Status: StatusCompleted, Result: &result, CompletedAt: &at}
}

func Failed(msg string, at time.Time) Patch {
	return Patch{Status: StatusFailed, Error: &msg, CompletedAt: &at}
}

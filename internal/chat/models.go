package chat

import "time"

type Session struct {
	ID     uint64  `gorm:"primaryKey;autoIncrement" json:"session_id"`
	UserID uint64  `gorm:"index;not null" json:"-"`
	Title  *string `gorm:"type:varchar(128)" json:"title"`
	// Provider and Model pin a session to one chat backend; empty means the registry default.
	Provider  string    `gorm:"type:varchar(32)" json:"provider,omitempty"`
	Model     string    `gorm:"type:varchar(64)" json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID        uint64    `gorm:"not null;index:idx_chat_msg_user_session_id,priority:2" json:"session_id"`
	UserID           uint64    `gorm:"not null;index:idx_chat_msg_user_session_id,priority:1" json:"-"`
	Role             string    `gorm:"type:varchar(16);index;not null" json:"role"`
	Content          string    `gorm:"type:longtext;not null" json:"content"`
	DetectedEndpoint *string   `gorm:"type:varchar(32)" json:"detected_endpoint,omitempty"`
	TaskID           *string   `gorm:"type:varchar(64);index" json:"task_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

type LinkStatus string

const (
	LinkPending   LinkStatus = "pending"
	LinkPolling   LinkStatus = "polling"
	LinkCompleted LinkStatus = "completed"
	LinkFailed    LinkStatus = "failed"
	LinkTimeout   LinkStatus = "timeout"
)

func (s LinkStatus) Final() bool { return s == LinkCompleted || s == LinkFailed }

// TaskLink ties a task to the chat turn that started it.
type TaskLink struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"-"`
	TaskID    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"task_id"`
	SessionID uint64     `gorm:"index;not null" json:"session_id"`
	MessageID uint64     `gorm:"not null" json:"message_id"`
	UserID    uint64     `gorm:"index;not null" json:"-"`
	Endpoint  string     `gorm:"type:varchar(32);not null" json:"endpoint"`
	Status    LinkStatus `gorm:"type:varchar(16);not null" json:"status"`

	// Filled once the completion message is written
	ResultMessageID *uint64 `json:"result_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TaskLink) TableName() string { return "chat_task_links" }

package domain

// Feature types available for purchase.
const (
	FeatureNotifications  = "notifications"
	FeatureProjectLinking = "project_linking"
	FeaturePremiumBundle  = "premium_bundle"
)

// Project lifecycle statuses.
const (
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectPaused    = "paused"
)

type User struct {
	UserID            string `json:"user_id"`
	DisplayName       string `json:"display_name"`
	FarcasterUsername string `json:"farcaster_username,omitempty"`
	FarcasterFID      int64  `json:"farcaster_fid"`
	CreatedAt         string `json:"created_at" format:"date-time"`
	UpdatedAt         string `json:"updated_at" format:"date-time"`
}

type Task struct {
	TaskID      string  `json:"task_id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	DueDate     string  `json:"due_date" format:"date-time"`
	IsCompleted bool    `json:"is_completed"`
	ProjectID   *string `json:"project_id,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Project struct {
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,completed,paused"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// Subscription is a time-boxed grant of a paid feature to a user.
// A row with no expiry never lapses; expired rows are deactivated
// lazily the first time they are read past their expiry.
type Subscription struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	FeatureType string  `json:"feature_type"`
	IsActive    bool    `json:"is_active"`
	ExpiresAt   *string `json:"expires_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

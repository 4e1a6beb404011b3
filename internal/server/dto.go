package server

import (
	"taskflow/internal/domain"
)

type AuthRequest struct {
	FID       int64  `json:"fid" example:"12345"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

type AuthResponse struct {
	Token    string                 `json:"token"`
	User     UserResponse           `json:"user"`
	Features []SubscriptionResponse `json:"features"`
}

type UserResponse struct {
	UserID            string `json:"user_id"`
	DisplayName       string `json:"display_name"`
	FarcasterUsername string `json:"farcaster_username,omitempty"`
	FarcasterFID      int64  `json:"farcaster_fid"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	ProjectID   *string `json:"project_id,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
}

type TaskResponse struct {
	TaskID      string  `json:"task_id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	DueDate     string  `json:"due_date"`
	IsCompleted bool    `json:"is_completed"`
	ProjectID   *string `json:"project_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type CreateProjectRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,completed,paused"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,completed,paused"`
}

type ProjectResponse struct {
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type PurchaseRequest struct {
	FeatureType  string `json:"feature_type" enum:"notifications,project_linking,premium_bundle"`
	TxHash       string `json:"tx_hash"`
	DurationDays *int   `json:"duration_days,omitempty"`
}

type SubscriptionResponse struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	FeatureType string  `json:"feature_type"`
	IsActive    bool    `json:"is_active"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type FeaturePlanResponse struct {
	FeatureType  string `json:"feature_type"`
	PriceETH     string `json:"price_eth"`
	DurationDays int    `json:"duration_days"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		UserID:            u.UserID,
		DisplayName:       u.DisplayName,
		FarcasterUsername: u.FarcasterUsername,
		FarcasterFID:      u.FarcasterFID,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		TaskID:      t.TaskID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		IsCompleted: t.IsCompleted,
		ProjectID:   t.ProjectID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func taskResponses(tasks []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskResponse(t))
	}
	return res
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ProjectID:   p.ProjectID,
		UserID:      p.UserID,
		Title:       p.Title,
		Description: p.Description,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func projectResponses(projects []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		res = append(res, projectResponse(p))
	}
	return res
}

func subscriptionResponse(s domain.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		FeatureType: s.FeatureType,
		IsActive:    s.IsActive,
		ExpiresAt:   s.ExpiresAt,
		CreatedAt:   s.CreatedAt,
	}
}

func subscriptionResponses(subs []domain.Subscription) []SubscriptionResponse {
	res := make([]SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		res = append(res, subscriptionResponse(s))
	}
	return res
}

func eventResponses(evts []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(evts))
	for _, e := range evts {
		res = append(res, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			UserID:     e.UserID,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			Payload:    e.Payload,
		})
	}
	return res
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

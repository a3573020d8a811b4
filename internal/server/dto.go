package server

import (
	"taskboard/internal/domain"
	"taskboard/internal/engine"
)

type CreateTaskRequest struct {
	Title       string  `json:"title,omitempty" example:"Ship the release notes"`
	Description string  `json:"description,omitempty" example:"Collect highlights and publish"`
	DueDate     string  `json:"due_date,omitempty" example:"2026-09-15"`
	Priority    *string `json:"priority,omitempty" enum:"high,medium,low"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

// UpdateTaskRequest is a partial update; absent fields are untouched.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"high,medium,low"`
	Status      *string `json:"status,omitempty" enum:"pending,completed"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

type UserRefResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type TaskResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     string          `json:"due_date" format:"date-time"`
	Priority    string          `json:"priority" enum:"high,medium,low"`
	Status      string          `json:"status" enum:"pending,completed"`
	AssignedTo  UserRefResponse `json:"assigned_to"`
	CreatedBy   UserRefResponse `json:"created_by"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
}

type TaskPageResponse struct {
	Tasks       []TaskResponse `json:"tasks"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Total       int            `json:"total"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"admin,user"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type MessageResponse struct {
	Message string `json:"message" example:"Task removed"`
}

type WhoAmIResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Source string `json:"source,omitempty"`
}

type DevLoginRequest struct {
	Email string `json:"email" example:"alice@example.com"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func userRefResponse(r domain.UserRef) UserRefResponse {
	return UserRefResponse{ID: r.ID, Name: r.Name, Email: r.Email}
}

func taskResponse(t domain.TaskView) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    t.Priority,
		Status:      t.Status,
		AssignedTo:  userRefResponse(t.AssignedTo),
		CreatedBy:   userRefResponse(t.CreatedBy),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.TaskView) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskResponse(t))
	}
	return res
}

func pageResponse(p engine.TaskPage) TaskPageResponse {
	return TaskPageResponse{
		Tasks:       mapTasks(p.Tasks),
		TotalPages:  p.TotalPages,
		CurrentPage: p.CurrentPage,
		Total:       p.Total,
	}
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

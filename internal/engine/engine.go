package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/events"
	"taskboard/internal/repo"
	"taskboard/internal/validation"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// TaskCreateOptions are parameters for creating a task. ActorID is the
// authenticated principal; it becomes created_by unconditionally.
type TaskCreateOptions struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
	AssignedTo  string
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.TaskView, error) {
	var ve validation.Errors
	if strings.TrimSpace(opts.Title) == "" {
		ve.Required("title")
	}
	if strings.TrimSpace(opts.Description) == "" {
		ve.Required("description")
	}
	dueDate := ""
	if strings.TrimSpace(opts.DueDate) == "" {
		ve.Required("due_date")
	} else {
		normalized, err := normalizeDate(opts.DueDate)
		if err != nil {
			ve.Add("due_date", "must be a date or RFC3339 timestamp")
		}
		dueDate = normalized
	}
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	} else if !domain.ValidPriority(priority) {
		ve.Add("priority", "must be one of high, medium, low")
	}
	assignedTo := opts.AssignedTo
	if assignedTo == "" {
		assignedTo = opts.ActorID
	}
	users, err := e.Repo.UsersByID(ctx, []string{assignedTo, opts.ActorID})
	if err != nil {
		return domain.TaskView{}, err
	}
	if _, ok := users[assignedTo]; !ok {
		ve.Add("assigned_to", "unknown user")
	}
	if _, ok := users[opts.ActorID]; !ok {
		ve.Add("created_by", "unknown user")
	}
	if err := ve.OrNil(); err != nil {
		return domain.TaskView{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:          uuid.NewString(),
		Title:       opts.Title,
		Description: opts.Description,
		DueDate:     dueDate,
		Priority:    priority,
		Status:      domain.StatusPending,
		AssignedTo:  assignedTo,
		CreatedBy:   opts.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TaskView{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.TaskView{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, opts.ActorID, events.Payload{
		"title":       t.Title,
		"assigned_to": t.AssignedTo,
	}); err != nil {
		return domain.TaskView{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TaskView{}, err
	}
	return expandTask(t, users), nil
}

// GetTask returns a task with referential fields expanded. A malformed
// identifier is reported as not-found, never as an input or server error.
func (e Engine) GetTask(ctx context.Context, id string) (domain.TaskView, error) {
	if uuid.Validate(id) != nil {
		return domain.TaskView{}, repo.ErrNotFound
	}
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.TaskView{}, err
	}
	return e.expandOne(ctx, t)
}

// UpdateTask authorizes the patch against the task's current state, then
// applies only the fields present and non-empty in the patch. Either every
// permitted field is persisted or none is.
func (e Engine) UpdateTask(ctx context.Context, id, actorID string, p domain.TaskPatch) (domain.TaskView, error) {
	if uuid.Validate(id) != nil {
		return domain.TaskView{}, repo.ErrNotFound
	}
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.TaskView{}, err
	}
	if err := auth.CanUpdate(actorID, t, p); err != nil {
		return domain.TaskView{}, err
	}
	if p.Empty() {
		// Nothing recognized to apply; a no-op is a success.
		return e.expandOne(ctx, t)
	}

	var ve validation.Errors
	changed := []string{}
	prevStatus := t.Status
	if v := strVal(p.Title); v != "" {
		t.Title = v
		changed = append(changed, "title")
	}
	if v := strVal(p.Description); v != "" {
		t.Description = v
		changed = append(changed, "description")
	}
	if v := strVal(p.DueDate); v != "" {
		normalized, err := normalizeDate(v)
		if err != nil {
			ve.Add("due_date", "must be a date or RFC3339 timestamp")
		} else {
			t.DueDate = normalized
			changed = append(changed, "due_date")
		}
	}
	if v := strVal(p.Priority); v != "" {
		if !domain.ValidPriority(v) {
			ve.Add("priority", "must be one of high, medium, low")
		} else {
			t.Priority = v
			changed = append(changed, "priority")
		}
	}
	if v := strVal(p.Status); v != "" {
		if !domain.ValidStatus(v) {
			ve.Add("status", "must be one of pending, completed")
		} else {
			t.Status = v
			changed = append(changed, "status")
		}
	}
	if v := strVal(p.AssignedTo); v != "" {
		if _, err := e.Repo.GetUser(ctx, v); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				ve.Add("assigned_to", "unknown user")
			} else {
				return domain.TaskView{}, err
			}
		} else {
			t.AssignedTo = v
			changed = append(changed, "assigned_to")
		}
	}
	if err := ve.OrNil(); err != nil {
		return domain.TaskView{}, err
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TaskView{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.TaskView{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", "task", t.ID, actorID, events.Payload{
		"fields":      changed,
		"from_status": prevStatus,
		"to_status":   t.Status,
	}); err != nil {
		return domain.TaskView{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TaskView{}, err
	}
	return e.expandOne(ctx, t)
}

// DeleteTask removes a task. Creator only.
func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	if uuid.Validate(id) != nil {
		return repo.ErrNotFound
	}
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CanDelete(actorID, t); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTask(ctx, tx, t.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", "task", t.ID, actorID, events.Payload{
		"title": t.Title,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateUser registers a user. Credentials live outside this system; users
// here exist for assignment and referential expansion.
func (e Engine) CreateUser(ctx context.Context, name, email, role string) (domain.User, error) {
	var ve validation.Errors
	if strings.TrimSpace(name) == "" {
		ve.Required("name")
	}
	if strings.TrimSpace(email) == "" {
		ve.Required("email")
	}
	if role == "" {
		role = "user"
	} else if role != "admin" && role != "user" {
		ve.Add("role", "must be admin or user")
	}
	if err := ve.OrNil(); err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// normalizeDate accepts a calendar date or an RFC3339 timestamp and returns
// the RFC3339 UTC form used for storage and range comparison.
func normalizeDate(in string) (string, error) {
	in = strings.TrimSpace(in)
	if ts, err := time.Parse(time.RFC3339, in); err == nil {
		return ts.UTC().Format(time.RFC3339), nil
	}
	ts, err := time.Parse("2006-01-02", in)
	if err != nil {
		return "", err
	}
	return ts.UTC().Format(time.RFC3339), nil
}

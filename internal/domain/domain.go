package domain

// Task is the stored representation: referential fields hold user IDs.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date" format:"date-time"`
	Priority    string `json:"priority" enum:"high,medium,low"`
	Status      string `json:"status" enum:"pending,completed"`
	AssignedTo  string `json:"assigned_to"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// UserRef is the expanded form of a referential field in read responses.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TaskView is a Task with assigned_to/created_by expanded at the read boundary.
type TaskView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date" format:"date-time"`
	Priority    string  `json:"priority" enum:"high,medium,low"`
	Status      string  `json:"status" enum:"pending,completed"`
	AssignedTo  UserRef `json:"assigned_to"`
	CreatedBy   UserRef `json:"created_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"admin,user"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// TaskPatch is a partial update: nil means "field not present in the request".
// A present but empty value counts as absent, so a patch never clears a field
// to empty (the update contract is apply-present-non-empty only).
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *string
	Priority    *string
	Status      *string
	AssignedTo  *string
}

// TouchesStatus reports whether the patch changes the status group.
func (p TaskPatch) TouchesStatus() bool {
	return set(p.Status)
}

// TouchesDetails reports whether the patch changes the detail group
// (title, description, due date, priority, assignee).
func (p TaskPatch) TouchesDetails() bool {
	return set(p.Title) || set(p.Description) || set(p.DueDate) || set(p.Priority) || set(p.AssignedTo)
}

// Empty reports whether the patch carries no recognized field.
func (p TaskPatch) Empty() bool {
	return !p.TouchesStatus() && !p.TouchesDetails()
}

func set(v *string) bool {
	return v != nil && *v != ""
}

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// PriorityRank orders priorities for the in-memory sort path: high < medium < low.
func PriorityRank(p string) int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusCompleted
}

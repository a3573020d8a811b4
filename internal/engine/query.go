package engine

import (
	"context"
	"errors"
	"sort"

	"taskboard/internal/domain"
	"taskboard/internal/repo"
	"taskboard/internal/validation"
)

// Scope selects whose tasks a listing covers.
type Scope int

const (
	// ScopeOwn restricts the listing to tasks assigned to the principal.
	ScopeOwn Scope = iota
	// ScopeAll covers every task, with the full filter set available.
	ScopeAll
)

const (
	SortByPriority = "priority"
	SortByDueDate  = "dueDate"

	defaultPage  = 1
	defaultLimit = 10
)

// ListOptions is a task listing request. Empty filter fields impose no
// constraint; Page/Limit values below 1 fall back to defaults 1 and 10.
type ListOptions struct {
	Scope       Scope
	PrincipalID string
	Status      string
	Priority    string
	AssignedTo  string
	FromDate    string
	ToDate      string
	SortBy      string
	Page        int
	Limit       int
}

// TaskPage is one page of a listing plus enough shape for a client to walk
// the rest: total pages, the page served, and the unpaged match count.
type TaskPage struct {
	Tasks       []domain.TaskView `json:"tasks"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	Total       int               `json:"total"`
}

type queryPlan struct {
	filters    repo.TaskFilters
	byPriority bool
	page       int
	limit      int
}

// buildPlan normalizes a listing request into store filters and a page
// window. Own-scope listings pin assigned_to to the principal and ignore
// the all-scope-only filters. An unrecognized sortBy means the default
// creation-time ordering, not an error.
func buildPlan(opts ListOptions) (queryPlan, error) {
	p := queryPlan{page: opts.Page, limit: opts.Limit}
	if p.page < 1 {
		p.page = defaultPage
	}
	if p.limit < 1 {
		p.limit = defaultLimit
	}

	p.filters.Status = opts.Status
	p.filters.Priority = opts.Priority
	switch opts.Scope {
	case ScopeOwn:
		// An empty principal would widen the listing to every task.
		if opts.PrincipalID == "" {
			return queryPlan{}, errors.New("own-scope listing requires a principal")
		}
		p.filters.AssignedTo = opts.PrincipalID
	case ScopeAll:
		p.filters.AssignedTo = opts.AssignedTo
		var ve validation.Errors
		if opts.FromDate != "" {
			from, err := normalizeDate(opts.FromDate)
			if err != nil {
				ve.Add("fromDate", "must be a date or RFC3339 timestamp")
			}
			p.filters.DueFrom = from
		}
		if opts.ToDate != "" {
			to, err := normalizeDate(opts.ToDate)
			if err != nil {
				ve.Add("toDate", "must be a date or RFC3339 timestamp")
			}
			p.filters.DueTo = to
		}
		if err := ve.OrNil(); err != nil {
			return queryPlan{}, err
		}
		switch opts.SortBy {
		case SortByPriority:
			p.byPriority = true
		case SortByDueDate:
			p.filters.Sort = repo.SortDueDateAsc
		}
	}
	return p, nil
}

// ListTasks resolves a listing. Orderings the store knows natively are pushed
// down with the page window; the priority ordering is not store-native, so
// that path fetches the full match set, orders it stably by priority rank,
// and slices the requested page in memory.
func (e Engine) ListTasks(ctx context.Context, opts ListOptions) (TaskPage, error) {
	plan, err := buildPlan(opts)
	if err != nil {
		return TaskPage{}, err
	}
	skip := (plan.page - 1) * plan.limit

	var tasks []domain.Task
	var total int
	if plan.byPriority {
		f := plan.filters
		f.Sort = repo.SortUnordered
		all, err := e.Repo.ListTasks(ctx, f)
		if err != nil {
			return TaskPage{}, err
		}
		sort.SliceStable(all, func(i, j int) bool {
			return domain.PriorityRank(all[i].Priority) < domain.PriorityRank(all[j].Priority)
		})
		total = len(all)
		if skip < len(all) {
			end := skip + plan.limit
			if end > len(all) {
				end = len(all)
			}
			tasks = all[skip:end]
		}
	} else {
		f := plan.filters
		f.Limit = plan.limit
		f.Offset = skip
		tasks, err = e.Repo.ListTasks(ctx, f)
		if err != nil {
			return TaskPage{}, err
		}
		total, err = e.Repo.CountTasks(ctx, plan.filters)
		if err != nil {
			return TaskPage{}, err
		}
	}

	views, err := e.expandTasks(ctx, tasks)
	if err != nil {
		return TaskPage{}, err
	}
	return TaskPage{
		Tasks:       views,
		TotalPages:  (total + plan.limit - 1) / plan.limit,
		CurrentPage: plan.page,
		Total:       total,
	}, nil
}

// expandTasks resolves assigned_to/created_by IDs to user refs with one batch
// lookup. An ID whose user is gone expands to a bare ref carrying the ID.
func (e Engine) expandTasks(ctx context.Context, tasks []domain.Task) ([]domain.TaskView, error) {
	ids := make([]string, 0, len(tasks)*2)
	for _, t := range tasks {
		ids = append(ids, t.AssignedTo, t.CreatedBy)
	}
	users, err := e.Repo.UsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]domain.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, expandTask(t, users))
	}
	return views, nil
}

func (e Engine) expandOne(ctx context.Context, t domain.Task) (domain.TaskView, error) {
	views, err := e.expandTasks(ctx, []domain.Task{t})
	if err != nil {
		return domain.TaskView{}, err
	}
	return views[0], nil
}

func expandTask(t domain.Task, users map[string]domain.User) domain.TaskView {
	return domain.TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    t.Priority,
		Status:      t.Status,
		AssignedTo:  userRef(t.AssignedTo, users),
		CreatedBy:   userRef(t.CreatedBy, users),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func userRef(id string, users map[string]domain.User) domain.UserRef {
	if u, ok := users[id]; ok {
		return u.Ref()
	}
	return domain.UserRef{ID: id}
}

package engine_test

import (
	"fmt"
	"testing"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/engine"
)

// seedTasks creates n tasks for actor with one-second-apart creation times so
// the default newest-first ordering is observable.
func seedTasks(t *testing.T, env testEnv, actor domain.User, n int, tweak func(i int, o *engine.TaskCreateOptions)) []domain.TaskView {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]domain.TaskView, 0, n)
	for i := 0; i < n; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		env.Engine.Now = func() time.Time { return tick }
		opts := engine.TaskCreateOptions{
			Title:       fmt.Sprintf("task-%02d", i),
			Description: "seeded",
			DueDate:     fmt.Sprintf("2026-04-%02d", i+1),
			ActorID:     actor.ID,
		}
		if tweak != nil {
			tweak(i, &opts)
		}
		task, err := env.Engine.CreateTask(env.Ctx, opts)
		if err != nil {
			t.Fatalf("seed task %d: %v", i, err)
		}
		out = append(out, task)
	}
	return out
}

func TestListDefaultsAndPagination(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "Alice", "alice@example.com")
	seedTasks(t, env, alice, 25, nil)

	page, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{Scope: engine.ScopeAll, PrincipalID: alice.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Tasks) != 10 {
		t.Fatalf("default limit: got %d tasks", len(page.Tasks))
	}
	if page.CurrentPage != 1 || page.Total != 25 || page.TotalPages != 3 {
		t.Fatalf("page shape: %+v", page)
	}
	// default ordering is newest first
	if page.Tasks[0].Title != "task-24" {
		t.Fatalf("first task = %q", page.Tasks[0].Title)
	}

	last, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{Scope: engine.ScopeAll, PrincipalID: alice.ID, Page: 3})
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(last.Tasks) != 5 || last.CurrentPage != 3 {
		t.Fatalf("last page: %d tasks, page %d", len(last.Tasks), last.CurrentPage)
	}

	beyond, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{Scope: engine.ScopeAll, PrincipalID: alice.ID, Page: 9})
	if err != nil {
		t.Fatalf("beyond: %v", err)
	}
	if len(beyond.Tasks) != 0 || beyond.Total != 25 {
		t.Fatalf("past-the-end page should be empty with real totals: %+v", beyond)
	}
}

func TestListOwnScope(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "Alice", "alice@example.com")
	bob := seedUser(t, env, "Bob", "bob@example.com")
	seedTasks(t, env, alice, 3, nil)
	seedTasks(t, env, alice, 2, func(i int, o *engine.TaskCreateOptions) {
		o.Title = fmt.Sprintf("bobs-%d", i)
		o.AssignedTo = bob.ID
	})

	page, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{Scope: engine.ScopeOwn, PrincipalID: bob.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("own scope total = %d", page.Total)
	}
	for _, task := range page.Tasks {
		if task.AssignedTo.ID != bob.ID {
			t.Fatalf("leaked task %q assigned to %q", task.Title, task.AssignedTo.ID)
		}
	}
	// own scope ignores the assignedTo filter
	same, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{Scope: engine.ScopeOwn, PrincipalID: bob.ID, AssignedTo: alice.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if same.Total != 2 {
		t.Fatalf("assignedTo leaked into own scope: %d", same.Total)
	}
}

func TestListFiltersCombineAsAND(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "Alice", "alice@example.com")
	tasks := seedTasks(t, env, alice, 6, func(i int, o *engine.TaskCreateOptions) {
		if i%2 == 0 {
			o.Priority = domain.PriorityHigh
		}
	})
	// complete two of the high-priority ones
	for _, i := range []int{0, 2} {
		if _, err := env.Engine.UpdateTask(env.Ctx, tasks[i].ID, alice.ID, domain.TaskPatch{Status: strPtr(domain.StatusCompleted)}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	page, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{
		Scope:       engine.ScopeAll,
		PrincipalID: alice.ID,
		Status:      domain.StatusCompleted,
		Priority:    domain.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("conjunction total = %d", page.Total)
	}
	for _, task := range page.Tasks {
		if task.Status != domain.StatusCompleted || task.Priority != domain.PriorityHigh {
			t.Fatalf("filter leak: %+v", task)
		}
	}
}

func TestListDueDateWindow(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "Alice", "alice@example.com")
	seedTasks(t, env, alice, 10, nil) // due 2026-04-01 .. 2026-04-10

	page, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{
		Scope:       engine.ScopeAll,
		PrincipalID: alice.ID,
		FromDate:    "2026-04-03",
		ToDate:      "2026-04-05",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// bounds are inclusive on both ends
	if page.Total != 3 {
		t.Fatalf("window total = %d", page.Total)
	}
}

func TestListSortByDueDate(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "Alice", "alice@example.com")
	seedTasks(t, env, alice, 5, func(i int, o *engine.TaskCreateOptions) {
		o.DueDate = fmt.Sprintf("2026-04-%02d", 5-i)
	})

	page, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{
		Scope:       engine.ScopeAll,
		PrincipalID: alice.ID,
		SortBy:      engine.SortByDueDate,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	prev := ""
	for _, task := range page.Tasks {
		if prev != "" && task.DueDate < prev {
			t.Fatalf("due dates out of order: %q after %q", task.DueDate, prev)
		}
		prev = task.DueDate
	}
}

func TestListSortByPriority(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "Alice", "alice@example.com")
	prios := []string{
		domain.PriorityLow, domain.PriorityHigh, domain.PriorityMedium,
		domain.PriorityHigh, domain.PriorityLow, domain.PriorityMedium,
		domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow,
		domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow,
	}
	seedTasks(t, env, alice, len(prios), func(i int, o *engine.TaskCreateOptions) {
		o.Priority = prios[i]
	})

	page1, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{
		Scope:       engine.ScopeAll,
		PrincipalID: alice.ID,
		SortBy:      engine.SortByPriority,
		Limit:       5,
	})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if page1.Total != len(prios) || page1.TotalPages != 3 {
		t.Fatalf("totals across full match set: %+v", page1)
	}
	page2, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{
		Scope:       engine.ScopeAll,
		PrincipalID: alice.ID,
		SortBy:      engine.SortByPriority,
		Page:        2,
		Limit:       5,
	})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	all := append(append([]domain.TaskView{}, page1.Tasks...), page2.Tasks...)
	prevRank := 0
	for _, task := range all {
		rank := domain.PriorityRank(task.Priority)
		if rank < prevRank {
			t.Fatalf("priority rank regressed: %q after rank %d", task.Priority, prevRank)
		}
		prevRank = rank
	}
	// pages drawn from one deterministic ordering never overlap
	ids := map[string]bool{}
	for _, task := range all {
		if ids[task.ID] {
			t.Fatalf("task %q appears on both pages", task.ID)
		}
		ids[task.ID] = true
	}

	beyond, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{
		Scope:       engine.ScopeAll,
		PrincipalID: alice.ID,
		SortBy:      engine.SortByPriority,
		Page:        9,
		Limit:       5,
	})
	if err != nil {
		t.Fatalf("beyond: %v", err)
	}
	if len(beyond.Tasks) != 0 || beyond.Total != len(prios) || beyond.TotalPages != 3 {
		t.Fatalf("past-the-end priority page should be empty with real totals: %+v", beyond)
	}
}

func TestListOwnScopeRequiresPrincipal(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "Alice", "alice@example.com")
	seedTasks(t, env, alice, 2, nil)

	_, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{Scope: engine.ScopeOwn})
	if err == nil {
		t.Fatal("own scope without a principal should not list every task")
	}
}

func TestListUnknownSortFallsBack(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "Alice", "alice@example.com")
	seedTasks(t, env, alice, 3, nil)

	page, err := env.Engine.ListTasks(env.Ctx, engine.ListOptions{
		Scope:       engine.ScopeAll,
		PrincipalID: alice.ID,
		SortBy:      "title",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Tasks[0].Title != "task-02" {
		t.Fatalf("unknown sort should use newest first, got %q", page.Tasks[0].Title)
	}
}

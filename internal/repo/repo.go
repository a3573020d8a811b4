package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Sort is a store-native ordering. Priority has no native ordering here;
// callers needing it must fetch unsorted and order in memory.
type Sort int

const (
	SortCreatedDesc Sort = iota
	SortDueDateAsc
	SortUnordered
)

func (s Sort) orderBy() string {
	switch s {
	case SortDueDateAsc:
		return "ORDER BY due_date ASC, id ASC"
	case SortUnordered:
		return "ORDER BY id ASC"
	default:
		return "ORDER BY created_at DESC, id DESC"
	}
}

// TaskFilters describes the predicate set and page window for ListTasks.
// Zero values impose no constraint. DueFrom/DueTo are inclusive bounds.
type TaskFilters struct {
	AssignedTo string
	Status     string
	Priority   string
	DueFrom    string
	DueTo      string
	Sort       Sort
	Limit      int
	Offset     int
}

func (f TaskFilters) where() (string, []any) {
	var clauses []string
	var args []any
	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.DueFrom != "" {
		clauses = append(clauses, "due_date>=?")
		args = append(args, f.DueFrom)
	}
	if f.DueTo != "" {
		clauses = append(clauses, "due_date<=?")
		args = append(args, f.DueTo)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

const taskColumns = `id,title,description,due_date,priority,status,assigned_to,created_by,created_at,updated_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	err := scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Priority, &t.Status,
		&t.AssignedTo, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, t.DueDate, t.Priority, t.Status,
		t.AssignedTo, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, due_date=?, priority=?, status=?, assigned_to=?, updated_at=? WHERE id=?`,
		t.Title, t.Description, t.DueDate, t.Priority, t.Status, t.AssignedTo, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks returns tasks matching the filters in the requested store-native
// order, honoring Limit/Offset when Limit > 0.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	where, args := f.where()
	query := fmt.Sprintf(`SELECT %s FROM tasks %s %s`, taskColumns, where, f.Sort.orderBy())
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountTasks returns the number of tasks matching the filters, ignoring the
// page window.
func (r Repo) CountTasks(ctx context.Context, f TaskFilters) (int, error) {
	where, args := f.where()
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tasks `+where, args...).Scan(&n)
	return n, err
}

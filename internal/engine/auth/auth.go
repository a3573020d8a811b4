// Package auth decides whether a caller may apply a given mutation to a task.
// Permissions are field-granular: the status field is writable by the assignee
// or the creator, everything else only by the creator.
package auth

import (
	"fmt"

	"taskboard/internal/domain"
)

// ForbiddenError indicates the caller failed a field-group ownership check.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// CanUpdate checks every field group the patch touches against the task's
// pre-mutation state. A patch touching both groups must pass both checks; a
// patch touching neither is allowed (no-op).
func CanUpdate(callerID string, t domain.Task, p domain.TaskPatch) error {
	if p.TouchesStatus() && callerID != t.AssignedTo && callerID != t.CreatedBy {
		return ForbiddenError{Reason: "only the assignee or creator can change status"}
	}
	if p.TouchesDetails() && callerID != t.CreatedBy {
		return ForbiddenError{Reason: "only the creator can edit task details"}
	}
	return nil
}

// CanDelete allows deletion by the creator only.
func CanDelete(callerID string, t domain.Task) error {
	if callerID != t.CreatedBy {
		return ForbiddenError{Reason: "only the creator can delete a task"}
	}
	return nil
}

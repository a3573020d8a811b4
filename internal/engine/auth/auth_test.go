package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
)

func strPtr(s string) *string { return &s }

func TestCanUpdate(t *testing.T) {
	task := domain.Task{AssignedTo: "assignee", CreatedBy: "creator"}
	status := domain.TaskPatch{Status: strPtr("completed")}
	details := domain.TaskPatch{Title: strPtr("new"), DueDate: strPtr("2026-01-01")}
	mixed := domain.TaskPatch{Status: strPtr("completed"), Priority: strPtr("high")}

	tests := []struct {
		name   string
		caller string
		patch  domain.TaskPatch
		allow  bool
	}{
		{"assignee changes status", "assignee", status, true},
		{"creator changes status", "creator", status, true},
		{"outsider changes status", "other", status, false},
		{"creator edits details", "creator", details, true},
		{"assignee edits details", "assignee", details, false},
		{"outsider edits details", "other", details, false},
		{"creator mixed patch", "creator", mixed, true},
		{"assignee mixed patch", "assignee", mixed, false},
		{"empty patch always allowed", "other", domain.TaskPatch{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := auth.CanUpdate(tc.caller, task, tc.patch)
			if tc.allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorAs(t, err, &auth.ForbiddenError{})
			}
		})
	}
}

func TestCanUpdateAssigneeIsAlsoCreator(t *testing.T) {
	task := domain.Task{AssignedTo: "solo", CreatedBy: "solo"}
	err := auth.CanUpdate("solo", task, domain.TaskPatch{
		Status: strPtr("completed"),
		Title:  strPtr("rename"),
	})
	assert.NoError(t, err)
}

func TestCanDelete(t *testing.T) {
	task := domain.Task{AssignedTo: "assignee", CreatedBy: "creator"}
	assert.NoError(t, auth.CanDelete("creator", task))
	assert.ErrorAs(t, auth.CanDelete("assignee", task), &auth.ForbiddenError{})
	assert.ErrorAs(t, auth.CanDelete("other", task), &auth.ForbiddenError{})
}

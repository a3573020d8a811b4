package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskboard/internal/validation"
)

func TestAggregatesEveryViolation(t *testing.T) {
	var ve validation.Errors
	ve.Required("title")
	ve.Required("due_date")
	ve.Add("priority", "must be one of high, medium, low")

	assert.True(t, ve.HasErrors())
	assert.Len(t, ve.Fields, 3)
	msg := ve.Error()
	assert.Contains(t, msg, "title is required")
	assert.Contains(t, msg, "due_date is required")
	assert.Contains(t, msg, "priority: must be one of high, medium, low")
}

func TestOrNil(t *testing.T) {
	var ve validation.Errors
	assert.NoError(t, ve.OrNil())

	ve.Required("title")
	err := ve.OrNil()
	assert.Error(t, err)

	var target *validation.Errors
	assert.ErrorAs(t, err, &target)
	assert.Equal(t, "title", target.Fields[0].Field)
}

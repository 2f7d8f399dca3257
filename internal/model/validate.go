package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateTicket checks a Ticket for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the ticket is valid.
func ValidateTicket(t *Ticket) error {
	var ve ValidationError

	// Title: required and at most 500 characters.
	title := strings.TrimSpace(t.Title)
	if title == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "is required"})
	} else if len([]rune(title)) > 500 {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must be 500 characters or fewer"})
	}

	if t.ProjectID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "project_id", Message: "is required"})
	}
	if t.TeamID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "team_id", Message: "is required"})
	}

	// Priority: must be 0-4.
	if t.Priority < 0 || t.Priority > 4 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "priority",
			Message: fmt.Sprintf("must be between 0 and 4, got %d", t.Priority),
		})
	}

	if t.Points < 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "points",
			Message: fmt.Sprintf("must not be negative, got %d", t.Points),
		})
	}

	if !t.State.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "state",
			Message: fmt.Sprintf("invalid value %q", t.State),
		})
	}

	if !t.Type.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "type",
			Message: fmt.Sprintf("invalid value %q", t.Type),
		})
	}

	if !t.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q", t.Status),
		})
	}

	if t.Assignee == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "assignee", Message: "must be a user id or " + NoAssignee})
	}
	if t.Reporter == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "reporter", Message: "must be a user id or " + NoReporter})
	}

	for i, l := range t.Links {
		if l.TicketID == t.ID && t.ID != "" {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   fmt.Sprintf("links[%d]", i),
				Message: "must not reference the ticket itself",
			})
		}
		if !l.Relation.IsValid() {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   fmt.Sprintf("links[%d].relation", i),
				Message: fmt.Sprintf("invalid value %d", int(l.Relation)),
			})
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateCollection checks a sprint, release or tag for constraint violations.
func ValidateCollection(c *Collection) error {
	var ve ValidationError

	if !c.Kind.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{Field: "kind", Message: fmt.Sprintf("invalid value %q", c.Kind)})
	}
	if strings.TrimSpace(c.Name) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is required"})
	}
	if c.ProjectID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "project_id", Message: "is required"})
	}
	if c.StartAt != nil && c.EndAt != nil && c.EndAt.Before(*c.StartAt) {
		ve.Errors = append(ve.Errors, FieldError{Field: "end_at", Message: "must not be before start_at"})
	}
	if c.Kind != KindSprint && (c.StartAt != nil || c.EndAt != nil) {
		ve.Errors = append(ve.Errors, FieldError{Field: "start_at", Message: "only sprints have dates"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

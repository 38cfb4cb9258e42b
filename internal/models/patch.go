package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Field carries one optionally supplied value of a request body. Set is true
// whenever the key was present in the JSON document, including an explicit null.
type Field[T any] struct {
	Value T
	Set   bool
}

// Some returns a supplied field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	return json.Unmarshal(data, &f.Value)
}

// NumericID is an identifier accepted either as a JSON number or a numeric string.
type NumericID int64

func (id *NumericID) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return NewErrorf(ErrorCodeInvalidArgument, "board_id must be a positive integer")
	}
	*id = NumericID(v)
	return nil
}

// Date is a timestamp that also accepts a bare YYYY-MM-DD calendar date on input.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewErrorf(ErrorCodeInvalidArgument, "due_date must be a string")
	}
	t, err := ParseDate(raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDate parses an RFC 3339 timestamp or a calendar date (midnight UTC).
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, NewErrorf(ErrorCodeInvalidArgument, "invalid due_date %q: expected RFC 3339 timestamp or YYYY-MM-DD", raw)
}

// BoardPatch describes board fields supplied by a create or update request.
type BoardPatch struct {
	Name        Field[string]  `json:"name"`
	Description Field[*string] `json:"description"`
	Color       Field[*string] `json:"color"`
}

// Validate checks supplied fields. When creating, name must be supplied.
func (p BoardPatch) Validate(creating bool) error {
	if creating && !p.Name.Set {
		return NewErrorf(ErrorCodeInvalidArgument, "name is required")
	}
	if p.Name.Set && strings.TrimSpace(p.Name.Value) == "" {
		return NewErrorf(ErrorCodeInvalidArgument, "name must not be empty")
	}
	return nil
}

// Apply merges supplied fields into b; absent fields keep their value.
func (p BoardPatch) Apply(b *Board) {
	if p.Name.Set {
		b.Name = strings.TrimSpace(p.Name.Value)
	}
	if p.Description.Set {
		b.Description = p.Description.Value
	}
	if p.Color.Set {
		b.Color = p.Color.Value
	}
	b.DisplayColor = DisplayColor(b.Color)
}

// TaskPatch describes task fields supplied by a create or update request.
type TaskPatch struct {
	BoardID     Field[NumericID] `json:"board_id"`
	Title       Field[string]    `json:"title"`
	Description Field[*string]   `json:"description"`
	Status      Field[Status]    `json:"status"`
	Priority    Field[*Priority] `json:"priority"`
	AssignedTo  Field[*string]   `json:"assigned_to"`
	DueDate     Field[*Date]     `json:"due_date"`
}

// Validate checks supplied fields. When creating, board_id and title must be supplied.
func (p TaskPatch) Validate(creating bool) error {
	if creating {
		if !p.BoardID.Set {
			return NewErrorf(ErrorCodeInvalidArgument, "board_id is required")
		}
		if !p.Title.Set {
			return NewErrorf(ErrorCodeInvalidArgument, "title is required")
		}
	}
	if p.BoardID.Set && p.BoardID.Value <= 0 {
		return NewErrorf(ErrorCodeInvalidArgument, "board_id must be a positive integer")
	}
	if p.Title.Set && strings.TrimSpace(p.Title.Value) == "" {
		return NewErrorf(ErrorCodeInvalidArgument, "title must not be empty")
	}
	if p.Status.Set && !p.Status.Value.Valid() {
		_, err := ParseStatus(string(p.Status.Value))
		return err
	}
	if p.Priority.Set && p.Priority.Value != nil && !p.Priority.Value.Valid() {
		_, err := ParsePriority(string(*p.Priority.Value))
		return err
	}
	return nil
}

// Apply merges supplied fields into t; absent fields keep their value.
// A new task without a status starts as todo.
func (p TaskPatch) Apply(t *Task) {
	if p.BoardID.Set {
		t.BoardID = int64(p.BoardID.Value)
	}
	if p.Title.Set {
		t.Title = strings.TrimSpace(p.Title.Value)
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Status.Set {
		t.Status = p.Status.Value
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if p.Priority.Set {
		t.Priority = p.Priority.Value
	}
	if p.AssignedTo.Set {
		t.AssignedTo = p.AssignedTo.Value
	}
	if p.DueDate.Set {
		if p.DueDate.Value == nil {
			t.DueDate = nil
		} else {
			due := p.DueDate.Value.Time.UTC()
			t.DueDate = &due
		}
	}
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// History actions
const (
	HistoryActionCreated      = "CREATED"
	HistoryActionStatusChange = "STATUS_CHANGE"
	HistoryActionAssignment   = "ASSIGNMENT"
	HistoryActionNoteAdded    = "NOTE_ADDED"
)

// HistoryEntry is one entry of a service request history. The concrete
// types are CreatedEntry, StatusChangeEntry, AssignmentEntry and NoteAddedEntry.
type HistoryEntry interface {
	Action() string
	Meta() HistoryMeta
	historyEntry()
}

// HistoryMeta holds the fields shared by every history entry
type HistoryMeta struct {
	Timestamp time.Time `json:"timestamp"`
	AdminID   uint      `json:"admin_id"`
	AdminName *string   `json:"admin_name,omitempty"`
}

type CreatedEntry struct {
	HistoryMeta
	Description string `json:"description"`
}

type StatusChangeEntry struct {
	HistoryMeta
	OldStatus string  `json:"old_status"`
	NewStatus string  `json:"new_status"`
	Notes     *string `json:"notes,omitempty"`
}

type AssignmentEntry struct {
	HistoryMeta
	AssignedToAdminID   *uint   `json:"assigned_to_admin_id"`
	AssignedToAdminName *string `json:"assigned_to_admin_name,omitempty"`
}

type NoteAddedEntry struct {
	HistoryMeta
	Notes string `json:"notes"`
}

func (CreatedEntry) Action() string      { return HistoryActionCreated }
func (StatusChangeEntry) Action() string { return HistoryActionStatusChange }
func (AssignmentEntry) Action() string   { return HistoryActionAssignment }
func (NoteAddedEntry) Action() string    { return HistoryActionNoteAdded }

func (e CreatedEntry) Meta() HistoryMeta      { return e.HistoryMeta }
func (e StatusChangeEntry) Meta() HistoryMeta { return e.HistoryMeta }
func (e AssignmentEntry) Meta() HistoryMeta   { return e.HistoryMeta }
func (e NoteAddedEntry) Meta() HistoryMeta    { return e.HistoryMeta }

func (CreatedEntry) historyEntry()      {}
func (StatusChangeEntry) historyEntry() {}
func (AssignmentEntry) historyEntry()   {}
func (NoteAddedEntry) historyEntry()    {}

// Unassigned reports whether the entry clears the assignment
func (e AssignmentEntry) Unassigned() bool {
	return e.AssignedToAdminID == nil
}

func (e CreatedEntry) MarshalJSON() ([]byte, error) {
	type plain CreatedEntry
	return json.Marshal(struct {
		Action string `json:"action"`
		plain
	}{e.Action(), plain(e)})
}

func (e StatusChangeEntry) MarshalJSON() ([]byte, error) {
	type plain StatusChangeEntry
	return json.Marshal(struct {
		Action string `json:"action"`
		plain
	}{e.Action(), plain(e)})
}

func (e AssignmentEntry) MarshalJSON() ([]byte, error) {
	type plain AssignmentEntry
	return json.Marshal(struct {
		Action string `json:"action"`
		plain
	}{e.Action(), plain(e)})
}

func (e NoteAddedEntry) MarshalJSON() ([]byte, error) {
	type plain NoteAddedEntry
	return json.Marshal(struct {
		Action string `json:"action"`
		plain
	}{e.Action(), plain(e)})
}

// HistoryLog is the ordered history of a service request, stored as a jsonb array
type HistoryLog []HistoryEntry

func (l HistoryLog) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(l))
	for i, entry := range l {
		if entry == nil {
			return nil, fmt.Errorf("history entry %d is nil", i)
		}
		b, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

func (l *HistoryLog) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(HistoryLog, 0, len(raw))
	for i, item := range raw {
		entry, err := decodeHistoryEntry(item)
		if err != nil {
			return fmt.Errorf("history entry %d: %w", i, err)
		}
		out = append(out, entry)
	}
	*l = out
	return nil
}

func decodeHistoryEntry(data json.RawMessage) (HistoryEntry, error) {
	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Action {
	case HistoryActionCreated:
		var e CreatedEntry
		err := json.Unmarshal(data, &e)
		return e, err
	case HistoryActionStatusChange:
		var e StatusChangeEntry
		err := json.Unmarshal(data, &e)
		return e, err
	case HistoryActionAssignment:
		var e AssignmentEntry
		err := json.Unmarshal(data, &e)
		return e, err
	case HistoryActionNoteAdded:
		var e NoteAddedEntry
		err := json.Unmarshal(data, &e)
		return e, err
	default:
		return nil, fmt.Errorf("unknown history action %q", head.Action)
	}
}

// Value implements driver.Valuer
func (l HistoryLog) Value() (driver.Value, error) {
	b, err := l.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *HistoryLog) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*l = HistoryLog{}
		return nil
	case []byte:
		return l.UnmarshalJSON(v)
	case string:
		return l.UnmarshalJSON([]byte(v))
	default:
		return errors.New("unsupported history log column type")
	}
}

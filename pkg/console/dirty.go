package console

import (
	"encoding/json"
	"reflect"
)

// DirtyTracker gates a settings form's save control: the form is dirty
// exactly when its current values differ from the snapshot of the last
// fetched or saved server state.
type DirtyTracker struct {
	snapshot any
}

// NewDirtyTracker seeds the tracker with the state loaded from the server.
func NewDirtyTracker(saved any) *DirtyTracker {
	return &DirtyTracker{snapshot: clone(saved)}
}

// Commit replaces the snapshot after a successful save.
func (t *DirtyTracker) Commit(saved any) {
	t.snapshot = clone(saved)
}

// Dirty reports whether current differs from the snapshot. The save control
// is enabled exactly when this is true.
func (t *DirtyTracker) Dirty(current any) bool {
	return !reflect.DeepEqual(t.snapshot, clone(current))
}

// clone decouples the snapshot from the caller's mutable form state. The
// JSON round-trip also normalizes types so a struct snapshot compares equal
// to an identical struct value later.
func clone(v any) any {
	if v == nil {
		return nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	out := reflect.New(reflect.TypeOf(v))
	if err := json.Unmarshal(buf, out.Interface()); err != nil {
		return v
	}
	return out.Elem().Interface()
}

package memdb

import "context"

// Table is a typed view over one named table. Values are stored by value;
// pass a clone func when T holds slices or maps so callers never share
// backing storage with the store.
type Table[T any] struct {
	db    *DB
	name  string
	clone func(T) T
}

func NewTable[T any](d *DB, name string, clone func(T) T) *Table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Table[T]{db: d, name: name, clone: clone}
}

// Get returns the row for key, seeing writes staged by the unit of work in
// ctx.
func (t *Table[T]) Get(ctx context.Context, key string) (T, bool) {
	if u := unitFrom(ctx, t.db); u != nil {
		if v, ok := u.staged[t.name][key]; ok {
			return t.clone(v.(T)), true
		}
	}
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	v, ok := t.db.tables[t.name][key]
	if !ok {
		var zero T
		return zero, false
	}
	return t.clone(v.(T)), true
}

// Put stores v under key. Inside a unit of work the write is staged until
// commit; outside one it is applied immediately.
func (t *Table[T]) Put(ctx context.Context, key string, v T) {
	v = t.clone(v)
	if u := unitFrom(ctx, t.db); u != nil {
		rows, ok := u.staged[t.name]
		if !ok {
			rows = make(map[string]any)
			u.staged[t.name] = rows
		}
		rows[key] = v
		return
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.tableLocked(t.name)[key] = v
}

// Scan returns every row that satisfies match, in no particular order.
// A nil match returns all rows.
func (t *Table[T]) Scan(ctx context.Context, match func(T) bool) []T {
	merged := make(map[string]T)

	t.db.mu.RLock()
	for k, v := range t.db.tables[t.name] {
		merged[k] = v.(T)
	}
	t.db.mu.RUnlock()

	if u := unitFrom(ctx, t.db); u != nil {
		for k, v := range u.staged[t.name] {
			merged[k] = v.(T)
		}
	}

	out := make([]T, 0, len(merged))
	for _, v := range merged {
		if match == nil || match(v) {
			out = append(out, t.clone(v))
		}
	}
	return out
}

// Package memdb is an in-process transactional store used when the service
// runs without Postgres (STORE_DRIVER=memory) and by the domain service tests.
//
// Writes made inside WithinScope are staged and become visible to other
// callers only when the outermost unit of work returns nil. Scope keys are
// locked with one mutex each and held until that point, mirroring the
// transaction-level advisory locks of the Postgres store.
package memdb

import (
	"context"
	"sync"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/db"
)

var _ db.Transactor = (*DB)(nil)

// DB holds every table's committed rows.
type DB struct {
	mu     sync.RWMutex
	tables map[string]map[string]any

	scopeMu sync.Mutex
	scopes  map[string]*sync.Mutex
}

func New() *DB {
	return &DB{
		tables: make(map[string]map[string]any),
		scopes: make(map[string]*sync.Mutex),
	}
}

// Ping always succeeds; it lets DB stand in for a pool in health checks.
func (d *DB) Ping(ctx context.Context) error {
	return ctx.Err()
}

type unitKey struct{}

// unit is one in-flight unit of work.
type unit struct {
	db     *DB
	held   []*sync.Mutex
	locked map[string]bool
	staged map[string]map[string]any
}

func unitFrom(ctx context.Context, d *DB) *unit {
	u, _ := ctx.Value(unitKey{}).(*unit)
	if u == nil || u.db != d {
		return nil
	}
	return u
}

func (d *DB) scopeLock(scope string) *sync.Mutex {
	d.scopeMu.Lock()
	defer d.scopeMu.Unlock()
	m, ok := d.scopes[scope]
	if !ok {
		m = &sync.Mutex{}
		d.scopes[scope] = m
	}
	return m
}

func (u *unit) lock(scope string) {
	if u.locked[scope] {
		return
	}
	m := u.db.scopeLock(scope)
	m.Lock()
	u.locked[scope] = true
	u.held = append(u.held, m)
}

func (u *unit) release() {
	for i := len(u.held) - 1; i >= 0; i-- {
		u.held[i].Unlock()
	}
	u.held = nil
}

// WithinScope implements db.Transactor.
func (d *DB) WithinScope(ctx context.Context, scope string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u := unitFrom(ctx, d); u != nil {
		u.lock(scope)
		return fn(ctx)
	}

	u := &unit{
		db:     d,
		locked: make(map[string]bool),
		staged: make(map[string]map[string]any),
	}
	u.lock(scope)
	defer u.release()

	if err := fn(context.WithValue(ctx, unitKey{}, u)); err != nil {
		return err
	}
	d.apply(u.staged)
	return nil
}

func (d *DB) apply(staged map[string]map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, rows := range staged {
		t := d.tableLocked(name)
		for k, v := range rows {
			t[k] = v
		}
	}
}

func (d *DB) tableLocked(name string) map[string]any {
	t, ok := d.tables[name]
	if !ok {
		t = make(map[string]any)
		d.tables[name] = t
	}
	return t
}

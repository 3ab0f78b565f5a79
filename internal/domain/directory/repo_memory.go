package directory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/memdb"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/pkg/pagination"
)

type doctorRepoMemory struct {
	rows  *memdb.Table[Doctor]
	clock clock.Clock
}

func NewDoctorRepoMemory(store *memdb.DB, clk clock.Clock) DoctorRepository {
	return &doctorRepoMemory{rows: memdb.NewTable[Doctor](store, "doctor", nil), clock: clk}
}

func (r *doctorRepoMemory) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	d.CreatedAt = r.clock.Now()
	r.rows.Put(ctx, d.ID.String(), *d)
	return nil
}

func (r *doctorRepoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := r.rows.Get(ctx, id.String())
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *doctorRepoMemory) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	d, ok := r.rows.Get(ctx, id.String())
	if !ok {
		return ErrDoctorNotFound
	}
	d.Active = active
	r.rows.Put(ctx, id.String(), d)
	return nil
}

func (r *doctorRepoMemory) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Doctor, int, error) {
	all := r.rows.Scan(ctx, func(d Doctor) bool { return !activeOnly || d.Active })
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	start, end := pagination.Bounds(len(all), limit, offset)
	items := make([]*Doctor, 0, end-start)
	for i := start; i < end; i++ {
		d := all[i]
		items = append(items, &d)
	}
	return items, len(all), nil
}

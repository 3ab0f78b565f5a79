package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/memdb"
)

type appointmentRepoMemory struct {
	rows *memdb.Table[Appointment]
}

func NewAppointmentRepoMemory(store *memdb.DB) AppointmentRepository {
	return &appointmentRepoMemory{rows: memdb.NewTable[Appointment](store, "appointment", cloneAppointment)}
}

func cloneAppointment(a Appointment) Appointment {
	a.CheckedInAt = cloneTime(a.CheckedInAt)
	a.CalledAt = cloneTime(a.CalledAt)
	a.CompletedAt = cloneTime(a.CompletedAt)
	return a
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (r *appointmentRepoMemory) inScope(ctx context.Context, doctorID uuid.UUID, date clock.Date) []Appointment {
	return r.rows.Scan(ctx, func(a Appointment) bool {
		return a.DoctorID == doctorID && a.Date == date
	})
}

// Create enforces the same uniqueness as the Postgres indexes.
func (r *appointmentRepoMemory) Create(ctx context.Context, a *Appointment) error {
	if _, ok := r.rows.Get(ctx, a.ID.String()); ok {
		return fmt.Errorf("appointment %s already exists", a.ID)
	}
	for _, other := range r.inScope(ctx, a.DoctorID, a.Date) {
		if other.TokenNumber == a.TokenNumber {
			return fmt.Errorf("token %d already assigned for doctor %s on %s", a.TokenNumber, a.DoctorID, a.Date)
		}
	}
	r.rows.Put(ctx, a.ID.String(), *a)
	return nil
}

func (r *appointmentRepoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.rows.Get(ctx, id.String())
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *appointmentRepoMemory) Update(ctx context.Context, a *Appointment) error {
	cur, ok := r.rows.Get(ctx, a.ID.String())
	if !ok {
		return ErrNotFound
	}
	if a.Status == StatusConsulting {
		for _, other := range r.inScope(ctx, cur.DoctorID, cur.Date) {
			if other.ID != a.ID && other.Status == StatusConsulting {
				return fmt.Errorf("doctor %s already has appointment %s in consultation", cur.DoctorID, other.ID)
			}
		}
	}
	cur.Status = a.Status
	cur.DoctorNotes = a.DoctorNotes
	cur.CancellationReason = a.CancellationReason
	cur.CheckedInAt = a.CheckedInAt
	cur.CalledAt = a.CalledAt
	cur.CompletedAt = a.CompletedAt
	cur.UpdatedAt = a.UpdatedAt
	r.rows.Put(ctx, cur.ID.String(), cur)
	return nil
}

func (r *appointmentRepoMemory) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date clock.Date) ([]*Appointment, error) {
	rows := r.inScope(ctx, doctorID, date)
	sort.Slice(rows, func(i, j int) bool { return rows[i].TokenNumber < rows[j].TokenNumber })
	return pointers(rows), nil
}

func (r *appointmentRepoMemory) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	rows := r.rows.Scan(ctx, func(a Appointment) bool { return a.PatientID == patientID })
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[j].Date.Before(rows[i].Date)
		}
		return rows[i].TokenNumber < rows[j].TokenNumber
	})
	return pointers(rows), nil
}

func (r *appointmentRepoMemory) MaxToken(ctx context.Context, doctorID uuid.UUID, date clock.Date) (int, error) {
	max := 0
	for _, a := range r.inScope(ctx, doctorID, date) {
		if a.TokenNumber > max {
			max = a.TokenNumber
		}
	}
	return max, nil
}

func pointers(rows []Appointment) []*Appointment {
	out := make([]*Appointment, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

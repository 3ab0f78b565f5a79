package pharmacy

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/memdb"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/pkg/pagination"
)

type prescriptionRepoMemory struct {
	rows *memdb.Table[Prescription]
}

func NewPrescriptionRepoMemory(store *memdb.DB) PrescriptionRepository {
	return &prescriptionRepoMemory{rows: memdb.NewTable[Prescription](store, "prescription", clonePrescription)}
}

func clonePrescription(p Prescription) Prescription {
	p.Medications = append([]Medication(nil), p.Medications...)
	p.Notes = append([]Note(nil), p.Notes...)
	if p.DispensedAt != nil {
		t := *p.DispensedAt
		p.DispensedAt = &t
	}
	return p
}

func (r *prescriptionRepoMemory) Create(ctx context.Context, p *Prescription) error {
	if existing, err := r.GetByAppointment(ctx, p.AppointmentID); err == nil {
		return fmt.Errorf("appointment %s already has prescription %s", p.AppointmentID, existing.ID)
	}
	clash := r.rows.Scan(ctx, func(o Prescription) bool {
		return o.PharmacyID == p.PharmacyID && o.PickupDate == p.PickupDate && o.PickupToken == p.PickupToken
	})
	if len(clash) > 0 {
		return fmt.Errorf("pickup token %d already assigned for %s on %s", p.PickupToken, p.PharmacyID, p.PickupDate)
	}
	r.rows.Put(ctx, p.ID.String(), *p)
	return nil
}

func (r *prescriptionRepoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := r.rows.Get(ctx, id.String())
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *prescriptionRepoMemory) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	found := r.rows.Scan(ctx, func(p Prescription) bool { return p.AppointmentID == appointmentID })
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (r *prescriptionRepoMemory) UpdateStatus(ctx context.Context, p *Prescription) error {
	cur, ok := r.rows.Get(ctx, p.ID.String())
	if !ok {
		return ErrNotFound
	}
	cur.Status = p.Status
	cur.DispensedAt = p.DispensedAt
	cur.UpdatedAt = p.UpdatedAt
	r.rows.Put(ctx, cur.ID.String(), cur)
	return nil
}

func (r *prescriptionRepoMemory) AddNote(ctx context.Context, prescriptionID uuid.UUID, n *Note) error {
	cur, ok := r.rows.Get(ctx, prescriptionID.String())
	if !ok {
		return ErrNotFound
	}
	cur.Notes = append(cur.Notes, *n)
	r.rows.Put(ctx, cur.ID.String(), cur)
	return nil
}

func (r *prescriptionRepoMemory) MaxPickupToken(ctx context.Context, pharmacyID string, date clock.Date) (int, error) {
	max := 0
	for _, p := range r.rows.Scan(ctx, func(p Prescription) bool {
		return p.PharmacyID == pharmacyID && p.PickupDate == date
	}) {
		if p.PickupToken > max {
			max = p.PickupToken
		}
	}
	return max, nil
}

func (r *prescriptionRepoMemory) List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	all := r.rows.Scan(ctx, f.matches)
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].PickupToken < all[j].PickupToken
	})
	start, end := pagination.Bounds(len(all), limit, offset)
	items := make([]*Prescription, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, &all[i])
	}
	return items, len(all), nil
}

func (f Filter) matches(p Prescription) bool {
	if f.PharmacyID != "" && p.PharmacyID != f.PharmacyID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.PatientID != uuid.Nil && p.PatientID != f.PatientID {
		return false
	}
	if f.PickupToken != 0 && p.PickupToken != f.PickupToken {
		return false
	}
	if !f.From.IsZero() && p.PickupDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && f.To.Before(p.PickupDate) {
		return false
	}
	return true
}

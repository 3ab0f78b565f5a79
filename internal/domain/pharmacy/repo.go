package pharmacy

import (
	"context"

	"github.com/google/uuid"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
)

// PrescriptionRepository persists prescriptions with their medication lines
// and notes. Create writes the prescription and every line together.
type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error)
	UpdateStatus(ctx context.Context, p *Prescription) error
	AddNote(ctx context.Context, prescriptionID uuid.UUID, n *Note) error
	MaxPickupToken(ctx context.Context, pharmacyID string, date clock.Date) (int, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error)
}

package queue

import (
	"context"

	"github.com/google/uuid"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
)

// AppointmentRepository persists appointments. Token assignment and state
// changes must run inside a db.Transactor scope for the appointment's
// (doctor, date); the repository itself does no locking.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date clock.Date) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	MaxToken(ctx context.Context, doctorID uuid.UUID, date clock.Date) (int, error)
}

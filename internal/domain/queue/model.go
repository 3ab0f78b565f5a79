package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/triage"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
)

// Status is the appointment state.
type Status string

const (
	StatusBooked     Status = "booked"
	StatusInQueue    Status = "in_queue"
	StatusConsulting Status = "consulting"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// Eligible reports whether an appointment in this state can still be called.
func (s Status) Eligible() bool {
	return s == StatusBooked || s == StatusInQueue
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Appointment is one patient's place in a doctor's day. Token numbers are
// unique within (DoctorID, Date) and never reused.
type Appointment struct {
	ID                 uuid.UUID       `json:"id"`
	DoctorID           uuid.UUID       `json:"doctor_id"`
	PatientID          uuid.UUID       `json:"patient_id"`
	Date               clock.Date      `json:"appointment_date"`
	Time               string          `json:"appointment_time,omitempty"`
	TokenNumber        int             `json:"token_number"`
	Priority           triage.Priority `json:"priority"`
	Symptoms           string          `json:"symptoms,omitempty"`
	Status             Status          `json:"status"`
	DoctorNotes        string          `json:"doctor_notes,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CheckedInAt        *time.Time      `json:"checked_in_at,omitempty"`
	CalledAt           *time.Time      `json:"called_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ScopeKey names the lock that serializes every mutation of one doctor's
// day.
func ScopeKey(doctorID uuid.UUID, date clock.Date) string {
	return "appointment:" + doctorID.String() + ":" + date.String()
}

func (a *Appointment) Scope() string {
	return ScopeKey(a.DoctorID, a.Date)
}

// BookRequest is the input to Book. Priority is optional; when empty it is
// derived from Symptoms.
type BookRequest struct {
	DoctorID  uuid.UUID  `json:"doctor_id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Date      clock.Date `json:"appointment_date"`
	Time      string     `json:"appointment_time"`
	Symptoms  string     `json:"symptoms"`
	Priority  string     `json:"priority"`
}

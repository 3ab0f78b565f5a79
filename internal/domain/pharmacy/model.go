package pharmacy

import (
	"time"

	"github.com/google/uuid"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
)

// Status is the fulfillment state of a prescription.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDispensed Status = "dispensed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusDispensed || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDispensed, StatusCancelled:
		return true
	}
	return false
}

// Medication is one prescription line. Lines keep the order the doctor
// entered them in.
type Medication struct {
	Medicine     string `json:"medicine"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Note is a pharmacist remark. StatusAtTime records the prescription's
// status when the note was written.
type Note struct {
	ID           uuid.UUID `json:"id"`
	Note         string    `json:"note"`
	StatusAtTime Status    `json:"status_at_time"`
	CreatedAt    time.Time `json:"created_at"`
}

type Prescription struct {
	ID            uuid.UUID    `json:"id"`
	AppointmentID uuid.UUID    `json:"appointment_id"`
	DoctorID      uuid.UUID    `json:"doctor_id"`
	PatientID     uuid.UUID    `json:"patient_id"`
	Diagnosis     string       `json:"diagnosis,omitempty"`
	Medications   []Medication `json:"medications"`
	PharmacyID    string       `json:"pharmacy_id"`
	Status        Status       `json:"pharmacy_status"`
	PickupDate    clock.Date   `json:"pickup_date"`
	PickupToken   int          `json:"pickup_token"`
	Notes         []Note       `json:"pharmacy_notes"`
	DispensedAt   *time.Time   `json:"dispensed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewPrescription is what the consultation workflow hands to Create.
type NewPrescription struct {
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Diagnosis     string
	Medications   []Medication
	PharmacyID    string
}

// Filter narrows List. Zero fields match everything; From and To bound the
// pickup date inclusively.
type Filter struct {
	PharmacyID  string
	Status      Status
	PatientID   uuid.UUID
	PickupToken int
	From        clock.Date
	To          clock.Date
}

// PickupScope names the lock that serializes pickup token assignment for a
// pharmacy's day.
func PickupScope(pharmacyID string, date clock.Date) string {
	return "pickup:" + pharmacyID + ":" + date.String()
}

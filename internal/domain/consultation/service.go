package consultation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/pharmacy"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/queue"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/db"
)

// CompleteRequest is what the doctor submits to close a consultation.
type CompleteRequest struct {
	Notes       string                `json:"doctor_notes"`
	Diagnosis   string                `json:"diagnosis"`
	Medications []pharmacy.Medication `json:"medications"`
	PharmacyID  string                `json:"pharmacy_id"`
}

// Result is the completed appointment and, when medications were
// prescribed, the pending prescription created with it.
type Result struct {
	Appointment  *queue.Appointment     `json:"appointment"`
	Prescription *pharmacy.Prescription `json:"prescription,omitempty"`
}

// Service closes consultations. It owns no storage; it composes the queue
// engine and the pharmacy pipeline inside one unit of work.
type Service struct {
	tx       db.Transactor
	queue    *queue.Service
	pharmacy *pharmacy.Service
	log      zerolog.Logger
}

func NewService(tx db.Transactor, q *queue.Service, p *pharmacy.Service, logger zerolog.Logger) *Service {
	return &Service{
		tx:       tx,
		queue:    q,
		pharmacy: p,
		log:      logger.With().Str("component", "consultation").Logger(),
	}
}

// Complete marks the doctor's active consultation completed and, when req
// carries medication lines, creates its prescription. Both writes commit
// together or not at all. Lines are validated before anything is written.
//
// Locks are taken appointment scope first, then the pharmacy's pickup scope.
func (s *Service) Complete(ctx context.Context, doctorID, appointmentID uuid.UUID, req CompleteRequest) (*Result, error) {
	if err := pharmacy.ValidateMedications(req.Medications); err != nil {
		return nil, err
	}
	a, err := s.queue.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	err = s.tx.WithinScope(ctx, a.Scope(), func(ctx context.Context) error {
		done, err := s.queue.Complete(ctx, doctorID, appointmentID, req.Notes)
		if err != nil {
			return err
		}
		res.Appointment = done
		if len(req.Medications) == 0 {
			return nil
		}
		p, err := s.pharmacy.Create(ctx, pharmacy.NewPrescription{
			AppointmentID: done.ID,
			DoctorID:      done.DoctorID,
			PatientID:     done.PatientID,
			Diagnosis:     req.Diagnosis,
			Medications:   req.Medications,
			PharmacyID:    req.PharmacyID,
		})
		if err != nil {
			return fmt.Errorf("prescribe: %w", err)
		}
		res.Prescription = p
		return nil
	})
	if err != nil {
		s.log.Warn().
			Str("appointment_id", appointmentID.String()).
			Str("doctor_id", doctorID.String()).
			Err(err).
			Msg("consultation not completed")
		return nil, err
	}

	evt := s.log.Info().
		Str("appointment_id", res.Appointment.ID.String()).
		Int("token", res.Appointment.TokenNumber)
	if res.Prescription != nil {
		evt = evt.Int("pickup_token", res.Prescription.PickupToken)
	}
	evt.Msg("consultation completed")
	return res, nil
}

// Active returns the doctor's consultation in progress on date, or nil.
func (s *Service) Active(ctx context.Context, doctorID uuid.UUID, date clock.Date) (*queue.Appointment, error) {
	return s.queue.Active(ctx, doctorID, date)
}

func (s *Service) Today() clock.Date {
	return s.queue.Today()
}

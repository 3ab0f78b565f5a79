package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/db"
)

var (
	ErrNotFound          = errors.New("prescription not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidMedication = errors.New("invalid medication")
	ErrNoteRequired      = errors.New("note is required")
	ErrInvalidFilter     = errors.New("invalid filter")
)

// The pipeline is linear; cancellation is allowed from any non-terminal state.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusDispensed, StatusCancelled},
}

func ValidateTransition(from, to Status) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ValidateMedications checks every line before anything is written. Each
// line needs a medicine name; the other fields are free text.
func ValidateMedications(meds []Medication) error {
	for i, m := range meds {
		if strings.TrimSpace(m.Medicine) == "" {
			return fmt.Errorf("%w: line %d has no medicine", ErrInvalidMedication, i+1)
		}
	}
	return nil
}

type Service struct {
	tx              db.Transactor
	repo            PrescriptionRepository
	clock           clock.Clock
	defaultPharmacy string
	log             zerolog.Logger
}

func NewService(tx db.Transactor, repo PrescriptionRepository, clk clock.Clock, defaultPharmacy string, logger zerolog.Logger) *Service {
	return &Service{
		tx:              tx,
		repo:            repo,
		clock:           clk,
		defaultPharmacy: defaultPharmacy,
		log:             logger.With().Str("component", "pharmacy").Logger(),
	}
}

// Create inserts a pending prescription with the next pickup token for the
// pharmacy's day. Called from inside the consultation's unit of work it
// joins that unit, so the prescription commits or rolls back with the
// completed appointment.
func (s *Service) Create(ctx context.Context, np NewPrescription) (*Prescription, error) {
	if len(np.Medications) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInvalidMedication)
	}
	if err := ValidateMedications(np.Medications); err != nil {
		return nil, err
	}
	pharmacyID := strings.TrimSpace(np.PharmacyID)
	if pharmacyID == "" {
		pharmacyID = s.defaultPharmacy
	}

	now := s.clock.Now()
	meds := make([]Medication, len(np.Medications))
	for i, m := range np.Medications {
		m.Medicine = strings.TrimSpace(m.Medicine)
		meds[i] = m
	}
	p := &Prescription{
		ID:            uuid.New(),
		AppointmentID: np.AppointmentID,
		DoctorID:      np.DoctorID,
		PatientID:     np.PatientID,
		Diagnosis:     strings.TrimSpace(np.Diagnosis),
		Medications:   meds,
		PharmacyID:    pharmacyID,
		Status:        StatusPending,
		PickupDate:    clock.DateOf(now),
		Notes:         []Note{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.tx.WithinScope(ctx, PickupScope(p.PharmacyID, p.PickupDate), func(ctx context.Context) error {
		max, err := s.repo.MaxPickupToken(ctx, p.PharmacyID, p.PickupDate)
		if err != nil {
			return fmt.Errorf("read last pickup token: %w", err)
		}
		p.PickupToken = max + 1
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create prescription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("prescription_id", p.ID.String()).
		Str("appointment_id", p.AppointmentID.String()).
		Str("pharmacy_id", p.PharmacyID).
		Int("pickup_token", p.PickupToken).
		Int("lines", len(p.Medications)).
		Msg("prescription created")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Advance moves a prescription one step along the pipeline. Use Cancel to
// cancel; to must be the direct successor of the current status.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, to Status) (*Prescription, error) {
	if to == StatusCancelled {
		return s.Cancel(ctx, id, "")
	}
	return s.mutate(ctx, id, func(p *Prescription) error {
		if err := ValidateTransition(p.Status, to); err != nil {
			return err
		}
		now := s.clock.Now()
		p.Status = to
		p.UpdatedAt = now
		if to == StatusDispensed && p.DispensedAt == nil {
			p.DispensedAt = &now
		}
		return s.repo.UpdateStatus(ctx, p)
	})
}

// Cancel stops fulfillment. A non-empty reason is kept as a note recorded
// against the status the prescription was cancelled from.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Prescription, error) {
	return s.mutate(ctx, id, func(p *Prescription) error {
		if err := ValidateTransition(p.Status, StatusCancelled); err != nil {
			return err
		}
		now := s.clock.Now()
		if reason = strings.TrimSpace(reason); reason != "" {
			n := Note{ID: uuid.New(), Note: "cancelled: " + reason, StatusAtTime: p.Status, CreatedAt: now}
			if err := s.repo.AddNote(ctx, p.ID, &n); err != nil {
				return fmt.Errorf("add note: %w", err)
			}
			p.Notes = append(p.Notes, n)
		}
		p.Status = StatusCancelled
		p.UpdatedAt = now
		return s.repo.UpdateStatus(ctx, p)
	})
}

// AddNote appends a pharmacist remark without changing status.
func (s *Service) AddNote(ctx context.Context, id uuid.UUID, note string) (*Prescription, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrNoteRequired
	}
	return s.mutate(ctx, id, func(p *Prescription) error {
		if p.Status.Terminal() {
			return fmt.Errorf("%w: prescription is %s", ErrInvalidTransition, p.Status)
		}
		n := Note{ID: uuid.New(), Note: note, StatusAtTime: p.Status, CreatedAt: s.clock.Now()}
		if err := s.repo.AddNote(ctx, p.ID, &n); err != nil {
			return fmt.Errorf("add note: %w", err)
		}
		p.Notes = append(p.Notes, n)
		return nil
	})
}

// mutate re-reads the prescription under its own scope lock and applies fn.
// The pharmacy never locks an appointment scope.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(p *Prescription) error) (*Prescription, error) {
	var out *Prescription
	err := s.tx.WithinScope(ctx, "prescription:"+id.String(), func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		from := p.Status
		if err := fn(p); err != nil {
			s.log.Warn().
				Str("prescription_id", id.String()).
				Str("status", string(from)).
				Err(err).
				Msg("prescription update rejected")
			return err
		}
		if from != p.Status {
			s.log.Info().
				Str("prescription_id", p.ID.String()).
				Int("pickup_token", p.PickupToken).
				Str("from", string(from)).
				Str("to", string(p.Status)).
				Msg("prescription transition")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

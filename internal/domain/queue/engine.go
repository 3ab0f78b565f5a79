package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/directory"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/triage"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/db"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrDoctorNotFound    = directory.ErrDoctorNotFound
	ErrSlotInvalid       = errors.New("slot invalid")
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConsultationInProgress and ErrNotConsulting match ErrInvalidTransition
	// under errors.Is.
	ErrConsultationInProgress = fmt.Errorf("%w: consultation in progress", ErrInvalidTransition)
	ErrNotConsulting          = fmt.Errorf("%w: appointment is not the doctor's active consultation", ErrInvalidTransition)
	ErrNoEligiblePatients     = errors.New("no eligible patients")
)

var transitions = map[Status][]Status{
	StatusBooked:     {StatusInQueue, StatusConsulting, StatusCancelled, StatusExpired},
	StatusInQueue:    {StatusConsulting, StatusCancelled, StatusExpired},
	StatusConsulting: {StatusCompleted},
}

// ValidateTransition reports ErrInvalidTransition for any edge not in the
// appointment state machine. Terminal states have no outgoing edges.
func ValidateTransition(from, to Status) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// DoctorDirectory answers whether a doctor accepts bookings.
type DoctorDirectory interface {
	EnsureBookable(ctx context.Context, id uuid.UUID) error
}

// Service is the queue engine. Every mutation of a (doctor, date) scope runs
// inside tx.WithinScope for that scope, so token assignment, Call Next,
// completion and cancellation for one doctor's day are serialized while
// other doctors and days proceed independently.
type Service struct {
	tx      db.Transactor
	appts   AppointmentRepository
	doctors DoctorDirectory
	clock   clock.Clock
	log     zerolog.Logger
}

func NewService(tx db.Transactor, appts AppointmentRepository, doctors DoctorDirectory, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		tx:      tx,
		appts:   appts,
		doctors: doctors,
		clock:   clk,
		log:     logger.With().Str("component", "queue").Logger(),
	}
}

// Today is the current clinic date.
func (s *Service) Today() clock.Date {
	return clock.Today(s.clock)
}

func validTime(v string) bool {
	if len(v) != 5 {
		return false
	}
	_, err := time.Parse("15:04", v)
	return err == nil
}

// Book creates an appointment with the next token for the doctor's day.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrSlotInvalid)
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: appointment_date is required", ErrSlotInvalid)
	}
	if req.Date.Time().IsZero() {
		return nil, fmt.Errorf("%w: appointment_date %q is not YYYY-MM-DD", ErrSlotInvalid, req.Date)
	}
	if today := s.Today(); req.Date.Before(today) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrSlotInvalid, req.Date, today)
	}
	req.Time = strings.TrimSpace(req.Time)
	if req.Time != "" && !validTime(req.Time) {
		return nil, fmt.Errorf("%w: appointment_time %q is not HH:MM", ErrSlotInvalid, req.Time)
	}

	priority := triage.Classify(req.Symptoms)
	if req.Priority != "" {
		p, err := triage.ParsePriority(req.Priority)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSlotInvalid, err)
		}
		priority = p
	}

	if err := s.doctors.EnsureBookable(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	a := &Appointment{
		ID:        uuid.New(),
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      req.Date,
		Time:      req.Time,
		Priority:  priority,
		Symptoms:  strings.TrimSpace(req.Symptoms),
		Status:    StatusBooked,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.tx.WithinScope(ctx, a.Scope(), func(ctx context.Context) error {
		max, err := s.appts.MaxToken(ctx, a.DoctorID, a.Date)
		if err != nil {
			return fmt.Errorf("read last token: %w", err)
		}
		a.TokenNumber = max + 1
		if err := s.appts.Create(ctx, a); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Str("date", a.Date.String()).
		Int("token", a.TokenNumber).
		Str("priority", string(a.Priority)).
		Msg("appointment booked")
	return a, nil
}

// Get returns an appointment, expiring it first if its day has passed.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.stale(a) {
		return s.expire(ctx, a)
	}
	return a, nil
}

// ListForDoctorDay returns the scope's appointments in token order. Past
// days are expired under the scope lock before they are returned.
func (s *Service) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date clock.Date) ([]*Appointment, error) {
	if !date.Before(s.Today()) {
		return s.appts.ListByDoctorDate(ctx, doctorID, date)
	}
	var out []*Appointment
	err := s.tx.WithinScope(ctx, ScopeKey(doctorID, date), func(ctx context.Context) error {
		var err error
		out, err = s.loadScope(ctx, doctorID, date)
		return err
	})
	return out, err
}

// ListForPatient returns a patient's appointments, newest day first.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	appts, err := s.appts.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for i, a := range appts {
		if s.stale(a) {
			if appts[i], err = s.expire(ctx, a); err != nil {
				return nil, err
			}
		}
	}
	return appts, nil
}

// CheckIn marks a booked patient as present: booked -> in_queue.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, func(a *Appointment, now time.Time) error {
		if err := ValidateTransition(a.Status, StatusInQueue); err != nil {
			return err
		}
		a.Status = StatusInQueue
		a.CheckedInAt = &now
		return nil
	})
}

// Cancel withdraws an appointment that has not been called yet. The token
// stays consumed.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, id, func(a *Appointment, now time.Time) error {
		if err := ValidateTransition(a.Status, StatusCancelled); err != nil {
			return err
		}
		a.Status = StatusCancelled
		a.CancellationReason = strings.TrimSpace(reason)
		return nil
	})
}

// CallNext moves the head of the doctor's queue into consultation.
//
// Two concurrent calls for the same scope are serialized: the second sees
// the first one's consulting appointment and fails with
// ErrConsultationInProgress, or ErrNoEligiblePatients if the first found an
// empty queue. It is never retried against the next patient.
func (s *Service) CallNext(ctx context.Context, doctorID uuid.UUID, date clock.Date) (*Appointment, error) {
	return s.call(ctx, doctorID, date, func(scope []*Appointment) (*Appointment, error) {
		order := CallOrder(scope)
		if len(order) == 0 {
			return nil, ErrNoEligiblePatients
		}
		return order[0], nil
	})
}

// CallAppointment moves one specific waiting patient into consultation,
// bypassing the queue order. The single-consultation rule still applies.
func (s *Service) CallAppointment(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != doctorID {
		return nil, fmt.Errorf("%w: %s is not in doctor %s's queue", ErrNotFound, id, doctorID)
	}
	return s.call(ctx, doctorID, a.Date, func(scope []*Appointment) (*Appointment, error) {
		for _, c := range scope {
			if c.ID != id {
				continue
			}
			if err := ValidateTransition(c.Status, StatusConsulting); err != nil {
				return nil, err
			}
			return c, nil
		}
		return nil, ErrNotFound
	})
}

func (s *Service) call(ctx context.Context, doctorID uuid.UUID, date clock.Date, pick func([]*Appointment) (*Appointment, error)) (*Appointment, error) {
	var called *Appointment
	err := s.tx.WithinScope(ctx, ScopeKey(doctorID, date), func(ctx context.Context) error {
		scope, err := s.loadScope(ctx, doctorID, date)
		if err != nil {
			return err
		}
		if cur := Consulting(scope); cur != nil {
			s.log.Warn().
				Str("doctor_id", doctorID.String()).
				Str("date", date.String()).
				Int("current_token", cur.TokenNumber).
				Msg("call rejected: consultation in progress")
			return ErrConsultationInProgress
		}
		next, err := pick(scope)
		if err != nil {
			return err
		}
		from := next.Status
		now := s.clock.Now()
		next.Status = StatusConsulting
		next.CalledAt = &now
		next.UpdatedAt = now
		if err := s.appts.Update(ctx, next); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		s.logTransition(next, from)
		called = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return called, nil
}

// Complete closes the doctor's active consultation. It joins the caller's
// unit of work when there is one, so the consultation workflow can commit
// the prescription with it.
func (s *Service) Complete(ctx context.Context, doctorID, id uuid.UUID, notes string) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != doctorID {
		return nil, ErrNotConsulting
	}
	var done *Appointment
	err = s.tx.WithinScope(ctx, a.Scope(), func(ctx context.Context) error {
		cur, err := s.appts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != StatusConsulting {
			return fmt.Errorf("%w (status %s)", ErrNotConsulting, cur.Status)
		}
		now := s.clock.Now()
		cur.Status = StatusCompleted
		cur.DoctorNotes = strings.TrimSpace(notes)
		cur.CompletedAt = &now
		cur.UpdatedAt = now
		if err := s.appts.Update(ctx, cur); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		s.logTransition(cur, StatusConsulting)
		done = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// Active returns the doctor's consulting appointment for date, or nil.
func (s *Service) Active(ctx context.Context, doctorID uuid.UUID, date clock.Date) (*Appointment, error) {
	appts, err := s.appts.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return Consulting(appts), nil
}

// transition applies mutate to one appointment under its scope lock after
// re-reading it, so the check and the write see the same state.
func (s *Service) transition(ctx context.Context, id uuid.UUID, mutate func(a *Appointment, now time.Time) error) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *Appointment
	err = s.tx.WithinScope(ctx, a.Scope(), func(ctx context.Context) error {
		cur, err := s.appts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if s.stale(cur) {
			if err := s.expireLocked(ctx, cur); err != nil {
				return err
			}
		}
		from := cur.Status
		now := s.clock.Now()
		if err := mutate(cur, now); err != nil {
			s.log.Warn().
				Str("appointment_id", id.String()).
				Str("status", string(from)).
				Err(err).
				Msg("transition rejected")
			return err
		}
		cur.UpdatedAt = now
		if err := s.appts.Update(ctx, cur); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		s.logTransition(cur, from)
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadScope reads the scope and applies lazy expiry. Callers hold the
// scope lock.
func (s *Service) loadScope(ctx context.Context, doctorID uuid.UUID, date clock.Date) ([]*Appointment, error) {
	appts, err := s.appts.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		if s.stale(a) {
			if err := s.expireLocked(ctx, a); err != nil {
				return nil, err
			}
		}
	}
	return appts, nil
}

// stale reports whether a is still waiting on a day that has passed.
// Consultations in progress are never stale.
func (s *Service) stale(a *Appointment) bool {
	return a.Status.Eligible() && a.Date.Before(s.Today())
}

func (s *Service) expire(ctx context.Context, a *Appointment) (*Appointment, error) {
	var out *Appointment
	err := s.tx.WithinScope(ctx, a.Scope(), func(ctx context.Context) error {
		cur, err := s.appts.GetByID(ctx, a.ID)
		if err != nil {
			return err
		}
		if s.stale(cur) {
			if err := s.expireLocked(ctx, cur); err != nil {
				return err
			}
		}
		out = cur
		return nil
	})
	return out, err
}

func (s *Service) expireLocked(ctx context.Context, a *Appointment) error {
	from := a.Status
	a.Status = StatusExpired
	a.UpdatedAt = s.clock.Now()
	if err := s.appts.Update(ctx, a); err != nil {
		return fmt.Errorf("expire appointment: %w", err)
	}
	s.logTransition(a, from)
	return nil
}

func (s *Service) logTransition(a *Appointment, from Status) {
	s.log.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Int("token", a.TokenNumber).
		Str("from", string(from)).
		Str("to", string(a.Status)).
		Msg("appointment transitioned")
}

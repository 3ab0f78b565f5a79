package polling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/queue"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
)

// Row is one appointment as the doctor dashboard shows it.
type Row struct {
	*queue.Appointment
	DisplayLabel  string `json:"display_label"`
	QueuePosition int    `json:"queue_position"`
}

// Snapshot is a read-only view of one doctor's day. It may be stale by up
// to one poll interval; only the queue engine decides who is called.
type Snapshot struct {
	DoctorID     uuid.UUID  `json:"doctor_id"`
	Date         clock.Date `json:"date"`
	CurrentToken int        `json:"current_token"`
	Waiting      int        `json:"waiting"`
	Rows         []Row      `json:"appointments"`
	AsOf         time.Time  `json:"as_of"`
}

// Status is what a patient's screen polls.
type Status struct {
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Status        queue.Status `json:"status"`
	TokenNumber   int          `json:"token_number"`
	QueuePosition int          `json:"queue_position"`
	CurrentToken  int          `json:"current_token"`
	// EstimatedWait is in minutes.
	EstimatedWait int       `json:"estimated_wait"`
	AsOf          time.Time `json:"as_of"`
}

// Service answers dashboard polls. Identical concurrent reads of a scope
// share one load.
type Service struct {
	queue           *queue.Service
	clock           clock.Clock
	avgConsultation time.Duration
	loads           singleflight.Group
	log             zerolog.Logger
}

func NewService(q *queue.Service, clk clock.Clock, avgConsultation time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		queue:           q,
		clock:           clk,
		avgConsultation: avgConsultation,
		log:             logger.With().Str("component", "polling").Logger(),
	}
}

func (s *Service) Today() clock.Date {
	return s.queue.Today()
}

// loadScope reads a scope once for every poll that arrives while the read
// is in flight. The shared slice must not be mutated.
func (s *Service) loadScope(ctx context.Context, doctorID uuid.UUID, date clock.Date) ([]*queue.Appointment, error) {
	key := queue.ScopeKey(doctorID, date)
	v, err, shared := s.loads.Do(key, func() (interface{}, error) {
		// One caller going away must not fail the others.
		return s.queue.ListForDoctorDay(context.WithoutCancel(ctx), doctorID, date)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug().Str("scope", key).Msg("scope read shared")
	}
	return v.([]*queue.Appointment), nil
}

// QueueSnapshot returns the doctor's day in display order.
func (s *Service) QueueSnapshot(ctx context.Context, doctorID uuid.UUID, date clock.Date) (*Snapshot, error) {
	appts, err := s.loadScope(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		DoctorID: doctorID,
		Date:     date,
		Rows:     []Row{},
		AsOf:     s.clock.Now(),
	}
	if cur := queue.Consulting(appts); cur != nil {
		snap.CurrentToken = cur.TokenNumber
	}
	positions := make(map[uuid.UUID]int)
	for i, a := range queue.CallOrder(appts) {
		positions[a.ID] = i + 1
	}
	snap.Waiting = len(positions)
	for _, a := range queue.DisplayOrder(appts) {
		snap.Rows = append(snap.Rows, Row{
			Appointment:   a,
			DisplayLabel:  queue.DisplayLabel(a.Status),
			QueuePosition: positions[a.ID],
		})
	}
	return snap, nil
}

// QueueStatus returns where an appointment stands in its doctor's queue.
func (s *Service) QueueStatus(ctx context.Context, appointmentID uuid.UUID) (*Status, *queue.Appointment, error) {
	a, err := s.queue.Get(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	appts, err := s.loadScope(ctx, a.DoctorID, a.Date)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range appts {
		if c.ID == a.ID {
			a = c
			break
		}
	}
	st := &Status{
		AppointmentID: a.ID,
		Status:        a.Status,
		TokenNumber:   a.TokenNumber,
		QueuePosition: queue.Position(appts, a.ID),
		AsOf:          s.clock.Now(),
	}
	if cur := queue.Consulting(appts); cur != nil {
		st.CurrentToken = cur.TokenNumber
	}
	st.EstimatedWait = st.QueuePosition * int(s.avgConsultation/time.Minute)
	return st, a, nil
}

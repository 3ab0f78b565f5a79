package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/triage"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/memdb"
)

const testDay clock.Date = "2026-10-15"

type fakeDirectory struct {
	known map[uuid.UUID]bool
}

func (f *fakeDirectory) EnsureBookable(_ context.Context, id uuid.UUID) error {
	if f.known[id] {
		return nil
	}
	return ErrDoctorNotFound
}

type fixture struct {
	svc    *Service
	clock  *clock.ManagedClock
	doctor uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memdb.New()
	clk := clock.NewManaged(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	doctor := uuid.New()
	dir := &fakeDirectory{known: map[uuid.UUID]bool{doctor: true}}
	return &fixture{
		svc:    NewService(store, NewAppointmentRepoMemory(store), dir, clk, zerolog.Nop()),
		clock:  clk,
		doctor: doctor,
	}
}

func (f *fixture) book(t *testing.T, priority triage.Priority) *Appointment {
	t.Helper()
	a, err := f.svc.Book(context.Background(), BookRequest{
		DoctorID:  f.doctor,
		PatientID: uuid.New(),
		Date:      testDay,
		Priority:  string(priority),
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	return a
}

func TestBook_SequentialTokens(t *testing.T) {
	f := newFixture(t)
	for want := 1; want <= 5; want++ {
		a := f.book(t, triage.PriorityNormal)
		if a.TokenNumber != want {
			t.Fatalf("expected token %d, got %d", want, a.TokenNumber)
		}
		if a.Status != StatusBooked {
			t.Errorf("expected booked, got %s", a.Status)
		}
	}
}

func TestBook_TokensScopedPerDoctorDay(t *testing.T) {
	f := newFixture(t)
	f.book(t, triage.PriorityNormal)
	f.book(t, triage.PriorityNormal)

	next, err := f.svc.Book(context.Background(), BookRequest{
		DoctorID: f.doctor, PatientID: uuid.New(), Date: "2026-10-16",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.TokenNumber != 1 {
		t.Errorf("expected a new day to start at token 1, got %d", next.TokenNumber)
	}
}

func TestBook_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  BookRequest
	}{
		{"past date", BookRequest{DoctorID: f.doctor, PatientID: uuid.New(), Date: "2026-10-14"}},
		{"missing date", BookRequest{DoctorID: f.doctor, PatientID: uuid.New()}},
		{"malformed date", BookRequest{DoctorID: f.doctor, PatientID: uuid.New(), Date: "15/10/2026"}},
		{"bad time", BookRequest{DoctorID: f.doctor, PatientID: uuid.New(), Date: testDay, Time: "9am"}},
		{"bad priority", BookRequest{DoctorID: f.doctor, PatientID: uuid.New(), Date: testDay, Priority: "vip"}},
		{"missing patient", BookRequest{DoctorID: f.doctor, Date: testDay}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Book(context.Background(), tt.req); !errors.Is(err, ErrSlotInvalid) {
				t.Errorf("expected ErrSlotInvalid, got %v", err)
			}
		})
	}
}

func TestBook_TodayAndTimeAccepted(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Book(context.Background(), BookRequest{
		DoctorID: f.doctor, PatientID: uuid.New(), Date: testDay, Time: "14:30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Time != "14:30" {
		t.Errorf("expected time hint kept, got %q", a.Time)
	}
}

func TestBook_DoctorNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Book(context.Background(), BookRequest{
		DoctorID: uuid.New(), PatientID: uuid.New(), Date: testDay,
	})
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestBook_PriorityDerivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	derived, err := f.svc.Book(ctx, BookRequest{
		DoctorID: f.doctor, PatientID: uuid.New(), Date: testDay, Symptoms: "Sudden chest pain",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if derived.Priority != triage.PriorityUrgent {
		t.Errorf("expected urgent from symptoms, got %s", derived.Priority)
	}

	explicit, err := f.svc.Book(ctx, BookRequest{
		DoctorID: f.doctor, PatientID: uuid.New(), Date: testDay, Symptoms: "chest pain", Priority: "normal",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explicit.Priority != triage.PriorityNormal {
		t.Errorf("expected explicit priority to win, got %s", explicit.Priority)
	}
}

func TestBook_ConcurrentTokensUnique(t *testing.T) {
	f := newFixture(t)
	const n = 40

	var mu sync.Mutex
	tokens := make(map[int]bool)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			a, err := f.svc.Book(context.Background(), BookRequest{
				DoctorID: f.doctor, PatientID: uuid.New(), Date: testDay,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if tokens[a.TokenNumber] {
				t.Errorf("duplicate token %d", a.TokenNumber)
			}
			tokens[a.TokenNumber] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i <= n; i++ {
		if !tokens[i] {
			t.Errorf("missing token %d", i)
		}
	}
}

func TestBook_TokensNotRecycledAfterCancel(t *testing.T) {
	f := newFixture(t)
	f.book(t, triage.PriorityNormal)
	second := f.book(t, triage.PriorityNormal)
	if _, err := f.svc.Cancel(context.Background(), second.ID, "changed plans"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if third := f.book(t, triage.PriorityNormal); third.TokenNumber != 3 {
		t.Errorf("expected token 3 after cancellation, got %d", third.TokenNumber)
	}
}

func TestCallNext_PriorityThenToken(t *testing.T) {
	f := newFixture(t)
	f.book(t, triage.PriorityNormal)
	f.book(t, triage.PriorityUrgent)
	f.book(t, triage.PriorityHigh)
	f.book(t, triage.PriorityNormal)
	ctx := context.Background()

	for _, want := range []int{2, 3, 1, 4} {
		a, err := f.svc.CallNext(ctx, f.doctor, testDay)
		if err != nil {
			t.Fatalf("CallNext: %v", err)
		}
		if a.TokenNumber != want {
			t.Fatalf("expected token %d, got %d", want, a.TokenNumber)
		}
		if a.Status != StatusConsulting || a.CalledAt == nil {
			t.Errorf("expected consulting with called_at, got %s", a.Status)
		}
		if _, err := f.svc.Complete(ctx, f.doctor, a.ID, "seen"); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); !errors.Is(err, ErrNoEligiblePatients) {
		t.Errorf("expected ErrNoEligiblePatients, got %v", err)
	}
}

func TestCallNext_ConsultationInProgress(t *testing.T) {
	f := newFixture(t)
	f.book(t, triage.PriorityNormal)
	f.book(t, triage.PriorityNormal)
	ctx := context.Background()

	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	_, err := f.svc.CallNext(ctx, f.doctor, testDay)
	if !errors.Is(err, ErrConsultationInProgress) {
		t.Fatalf("expected ErrConsultationInProgress, got %v", err)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("expected ErrConsultationInProgress to match ErrInvalidTransition")
	}
}

func TestCallNext_ConcurrentSingleActive(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.book(t, triage.PriorityNormal)
	}
	ctx := context.Background()

	const callers = 10
	var mu sync.Mutex
	var winners, inProgress int
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := f.svc.CallNext(ctx, f.doctor, testDay)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrConsultationInProgress):
				inProgress++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winners != 1 || inProgress != callers-1 {
		t.Errorf("expected 1 winner and %d conflicts, got %d and %d", callers-1, winners, inProgress)
	}

	appts, err := f.svc.ListForDoctorDay(ctx, f.doctor, testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	consulting := 0
	for _, a := range appts {
		if a.Status == StatusConsulting {
			consulting++
		}
	}
	if consulting != 1 {
		t.Errorf("expected exactly one consulting appointment, got %d", consulting)
	}
}

func TestCallNext_DoctorsDoNotInterfere(t *testing.T) {
	f := newFixture(t)
	other := uuid.New()
	f.svc.doctors.(*fakeDirectory).known[other] = true
	ctx := context.Background()

	f.book(t, triage.PriorityNormal)
	if _, err := f.svc.Book(ctx, BookRequest{DoctorID: other, PatientID: uuid.New(), Date: testDay}); err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if _, err := f.svc.CallNext(ctx, other, testDay); err != nil {
		t.Errorf("expected the other doctor's queue to be independent, got %v", err)
	}
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, triage.PriorityNormal)
	ctx := context.Background()

	got, err := f.svc.CheckIn(ctx, a.ID)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if got.Status != StatusInQueue || got.CheckedInAt == nil {
		t.Errorf("expected in_queue with checked_in_at, got %+v", got)
	}
	if _, err := f.svc.CheckIn(ctx, a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected second check-in to fail, got %v", err)
	}

	called, err := f.svc.CallNext(ctx, f.doctor, testDay)
	if err != nil || called.ID != a.ID {
		t.Fatalf("expected in_queue appointment to be callable, got %v, %v", called, err)
	}
}

func TestTerminalStatesRejectEveryTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.book(t, triage.PriorityNormal)
	if _, err := f.svc.Cancel(ctx, cancelled.ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	completed := f.book(t, triage.PriorityNormal)
	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if _, err := f.svc.Complete(ctx, f.doctor, completed.ID, "done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	for _, id := range []uuid.UUID{cancelled.ID, completed.ID} {
		for i := 0; i < 3; i++ {
			if _, err := f.svc.Cancel(ctx, id, ""); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Cancel attempt %d: expected ErrInvalidTransition, got %v", i, err)
			}
			if _, err := f.svc.CheckIn(ctx, id); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("CheckIn attempt %d: expected ErrInvalidTransition, got %v", i, err)
			}
			if _, err := f.svc.Complete(ctx, f.doctor, id, "again"); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Complete attempt %d: expected ErrInvalidTransition, got %v", i, err)
			}
			if _, err := f.svc.CallAppointment(ctx, f.doctor, id); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("CallAppointment attempt %d: expected ErrInvalidTransition, got %v", i, err)
			}
		}
	}
}

func TestCancel_ConsultingRejected(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, triage.PriorityNormal)
	ctx := context.Background()
	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, a.ID, "too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancel_RecordsReason(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, triage.PriorityNormal)
	got, err := f.svc.Cancel(context.Background(), a.ID, "  feeling better ")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != StatusCancelled || got.CancellationReason != "feeling better" {
		t.Errorf("unexpected cancellation: %+v", got)
	}
}

func TestLazyExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	waiting := f.book(t, triage.PriorityNormal)
	checkedIn := f.book(t, triage.PriorityNormal)
	consulting := f.book(t, triage.PriorityUrgent)
	if _, err := f.svc.CheckIn(ctx, checkedIn.ID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); err != nil {
		t.Fatalf("CallNext: %v", err)
	}

	f.clock.WarpForward(24 * time.Hour)

	got, err := f.svc.Get(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusExpired {
		t.Errorf("expected booked appointment to expire, got %s", got.Status)
	}

	appts, err := f.svc.ListForDoctorDay(ctx, f.doctor, testDay)
	if err != nil {
		t.Fatalf("ListForDoctorDay: %v", err)
	}
	for _, a := range appts {
		switch a.ID {
		case checkedIn.ID:
			if a.Status != StatusExpired {
				t.Errorf("expected in_queue appointment to expire, got %s", a.Status)
			}
		case consulting.ID:
			if a.Status != StatusConsulting {
				t.Errorf("consultation in progress must not expire, got %s", a.Status)
			}
		}
	}

	if _, err := f.svc.Cancel(ctx, waiting.ID, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected expired appointment to reject cancel, got %v", err)
	}
	if _, err := f.svc.Complete(ctx, f.doctor, consulting.ID, "late finish"); err != nil {
		t.Errorf("expected carried-over consultation to complete, got %v", err)
	}
}

func TestCallAppointment(t *testing.T) {
	f := newFixture(t)
	f.book(t, triage.PriorityUrgent)
	target := f.book(t, triage.PriorityNormal)
	ctx := context.Background()

	got, err := f.svc.CallAppointment(ctx, f.doctor, target.ID)
	if err != nil {
		t.Fatalf("CallAppointment: %v", err)
	}
	if got.ID != target.ID || got.Status != StatusConsulting {
		t.Errorf("expected target in consultation, got %+v", got)
	}
	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); !errors.Is(err, ErrConsultationInProgress) {
		t.Errorf("expected ErrConsultationInProgress, got %v", err)
	}
	if _, err := f.svc.CallAppointment(ctx, uuid.New(), target.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected another doctor's call to fail with ErrNotFound, got %v", err)
	}
}

func TestComplete_NotConsulting(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, triage.PriorityNormal)
	ctx := context.Background()

	if _, err := f.svc.Complete(ctx, f.doctor, a.ID, "x"); !errors.Is(err, ErrNotConsulting) {
		t.Errorf("expected ErrNotConsulting for booked appointment, got %v", err)
	}
	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if _, err := f.svc.Complete(ctx, uuid.New(), a.ID, "x"); !errors.Is(err, ErrNotConsulting) {
		t.Errorf("expected ErrNotConsulting for another doctor, got %v", err)
	}
	done, err := f.svc.Complete(ctx, f.doctor, a.ID, " flu ")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusCompleted || done.DoctorNotes != "flu" || done.CompletedAt == nil {
		t.Errorf("unexpected completion: %+v", done)
	}
}

func TestActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if a, err := f.svc.Active(ctx, f.doctor, testDay); err != nil || a != nil {
		t.Fatalf("expected no active consultation, got %v, %v", a, err)
	}
	booked := f.book(t, triage.PriorityNormal)
	if _, err := f.svc.CallNext(ctx, f.doctor, testDay); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	a, err := f.svc.Active(ctx, f.doctor, testDay)
	if err != nil || a == nil || a.ID != booked.ID {
		t.Errorf("expected %s active, got %v, %v", booked.ID, a, err)
	}
}

func TestListForPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	patient := uuid.New()
	for _, d := range []clock.Date{testDay, "2026-10-20", "2026-10-17"} {
		if _, err := f.svc.Book(ctx, BookRequest{DoctorID: f.doctor, PatientID: patient, Date: d}); err != nil {
			t.Fatalf("Book: %v", err)
		}
	}
	f.book(t, triage.PriorityNormal)

	items, err := f.svc.ListForPatient(ctx, patient)
	if err != nil {
		t.Fatalf("ListForPatient: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 appointments, got %d", len(items))
	}
	if items[0].Date != "2026-10-20" || items[2].Date != testDay {
		t.Errorf("expected newest day first, got %s..%s", items[0].Date, items[2].Date)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusBooked, StatusInQueue, true},
		{StatusBooked, StatusConsulting, true},
		{StatusInQueue, StatusConsulting, true},
		{StatusConsulting, StatusCompleted, true},
		{StatusBooked, StatusExpired, true},
		{StatusConsulting, StatusCancelled, false},
		{StatusConsulting, StatusExpired, false},
		{StatusInQueue, StatusBooked, false},
		{StatusCompleted, StatusConsulting, false},
		{StatusCancelled, StatusBooked, false},
		{StatusExpired, StatusInQueue, false},
	}
	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateTransition(%s, %s) = %v, want ok=%v", tt.from, tt.to, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	}
}

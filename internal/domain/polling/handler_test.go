package polling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/triage"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/auth"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/middleware"
)

var testIntervals = Intervals{Patient: 5 * time.Second, Doctor: 3 * time.Second, Pharmacy: 10 * time.Second}

func newServer(f *fixture) *echo.Echo {
	e := echo.New()
	NewHandler(f.svc).RegisterRoutes(e.Group("/api/v1"), middleware.PollMiddleware(testIntervals.For))
	return e
}

func get(e *echo.Echo, target, etag string, userID uuid.UUID, roles ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(auth.WithIdentity(context.Background(), userID.String(), roles))
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestIntervals_For(t *testing.T) {
	tests := []struct {
		role string
		want time.Duration
	}{
		{auth.RolePatient, 5 * time.Second},
		{auth.RoleDoctor, 3 * time.Second},
		{auth.RoleReceptionist, 3 * time.Second},
		{auth.RolePharmacist, 10 * time.Second},
	}
	for _, tt := range tests {
		ctx := auth.WithIdentity(context.Background(), uuid.New().String(), []string{tt.role})
		if got := testIntervals.For(ctx); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.role, tt.want, got)
		}
	}
}

func TestHandler_QueueStatus_PollContract(t *testing.T) {
	f := newFixture(t)
	e := newServer(f)
	a := f.book(t, triage.PriorityNormal)
	f.book(t, triage.PriorityNormal)
	target := "/api/v1/appointments/" + a.ID.String() + "/queue-status"

	rec := get(e, target, "", a.PatientID, auth.RolePatient)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(middleware.HeaderPollInterval); got != "5" {
		t.Errorf("expected patient interval 5, got %q", got)
	}
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.QueuePosition != 1 || st.EstimatedWait != 10 || st.AsOf.IsZero() {
		t.Errorf("unexpected status %+v", st)
	}
	etag := rec.Header().Get("ETag")

	// as_of moves but nothing else does.
	f.clock.WarpForward(time.Minute)
	if rec := get(e, target, etag, a.PatientID, auth.RolePatient); rec.Code != http.StatusNotModified {
		t.Errorf("expected 304 for unchanged queue, got %d", rec.Code)
	}

	if _, err := f.queue.CallNext(context.Background(), f.doctor, testDay); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	rec = get(e, target, etag, a.PatientID, auth.RolePatient)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after the queue moved, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") == etag {
		t.Error("expected a new ETag after the queue moved")
	}
}

func TestHandler_QueueStatus_OtherPatientForbidden(t *testing.T) {
	f := newFixture(t)
	e := newServer(f)
	a := f.book(t, triage.PriorityNormal)

	rec := get(e, "/api/v1/appointments/"+a.ID.String()+"/queue-status", "", uuid.New(), auth.RolePatient)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	rec = get(e, "/api/v1/appointments/"+uuid.New().String()+"/queue-status", "", uuid.New(), auth.RolePatient)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_QueueSnapshot(t *testing.T) {
	f := newFixture(t)
	e := newServer(f)
	f.book(t, triage.PriorityNormal)
	f.book(t, triage.PriorityUrgent)
	target := "/api/v1/doctors/" + f.doctor.String() + "/queue?date=2026-10-15"

	rec := get(e, target, "", f.doctor, auth.RoleDoctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(middleware.HeaderPollInterval); got != "3" {
		t.Errorf("expected doctor interval 3, got %q", got)
	}
	var snap struct {
		Rows []struct {
			TokenNumber   int    `json:"token_number"`
			DisplayLabel  string `json:"display_label"`
			QueuePosition int    `json:"queue_position"`
		} `json:"appointments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Rows) != 2 || snap.Rows[0].TokenNumber != 2 || snap.Rows[0].DisplayLabel != "WAITING" || snap.Rows[0].QueuePosition != 1 {
		t.Errorf("unexpected rows %+v", snap.Rows)
	}

	if rec := get(e, target, rec.Header().Get("ETag"), f.doctor, auth.RoleDoctor); rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}
}

func TestHandler_QueueSnapshot_Access(t *testing.T) {
	f := newFixture(t)
	e := newServer(f)
	target := "/api/v1/doctors/" + f.doctor.String() + "/queue"

	tests := []struct {
		name   string
		userID uuid.UUID
		role   string
		want   int
	}{
		{"own doctor", f.doctor, auth.RoleDoctor, http.StatusOK},
		{"receptionist", uuid.New(), auth.RoleReceptionist, http.StatusOK},
		{"other doctor", uuid.New(), auth.RoleDoctor, http.StatusForbidden},
		{"patient", uuid.New(), auth.RolePatient, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := get(e, target, "", tt.userID, tt.role); rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if rec := get(e, target+"?date=tomorrow", "", f.doctor, auth.RoleDoctor); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed date, got %d", rec.Code)
	}
}

package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/triage"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, doctor_id, patient_id, appointment_date, appointment_time, token_number,
	priority, symptoms, status, doctor_notes, cancellation_reason,
	checked_in_at, called_at, completed_at, created_at, updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var priority, status string
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &date, &a.Time, &a.TokenNumber,
		&priority, &a.Symptoms, &status, &a.DoctorNotes, &a.CancellationReason,
		&a.CheckedInAt, &a.CalledAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Date = clock.DateOf(date)
	a.Priority = triage.Priority(priority)
	a.Status = Status(status)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, doctor_id, patient_id, appointment_date, appointment_time,
			token_number, priority, symptoms, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.DoctorID, a.PatientID, a.Date.Time(), a.Time,
		a.TokenNumber, string(a.Priority), a.Symptoms, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

// Update writes the mutable columns. Identity, token and priority are fixed
// at booking.
func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status=$2, doctor_notes=$3, cancellation_reason=$4,
			checked_in_at=$5, called_at=$6, completed_at=$7, updated_at=$8
		WHERE id = $1`,
		a.ID, string(a.Status), a.DoctorNotes, a.CancellationReason,
		a.CheckedInAt, a.CalledAt, a.CompletedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date clock.Date) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2 ORDER BY token_number`, doctorID, date.Time())
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE patient_id = $1 ORDER BY appointment_date DESC, token_number`, patientID)
}

func (r *appointmentRepoPG) MaxToken(ctx context.Context, doctorID uuid.UUID, date clock.Date) (int, error) {
	var max int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(token_number), 0) FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2`, doctorID, date.Time()).Scan(&max)
	return max, err
}

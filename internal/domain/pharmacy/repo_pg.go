package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/db"
)

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const rxCols = `id, appointment_id, doctor_id, patient_id, diagnosis, pharmacy_id,
	pharmacy_status, pickup_date, pickup_token, dispensed_at, created_at, updated_at`

func (r *prescriptionRepoPG) scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var status string
	var pickup time.Time
	err := row.Scan(&p.ID, &p.AppointmentID, &p.DoctorID, &p.PatientID, &p.Diagnosis, &p.PharmacyID,
		&status, &pickup, &p.PickupToken, &p.DispensedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Status = Status(status)
	p.PickupDate = clock.DateOf(pickup)
	return &p, nil
}

// Create inserts the prescription and its lines. Callers run it inside a
// unit of work so a failed line leaves nothing behind.
func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	q := r.conn(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO prescription (id, appointment_id, doctor_id, patient_id, diagnosis, pharmacy_id,
			pharmacy_status, pickup_date, pickup_token, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.AppointmentID, p.DoctorID, p.PatientID, p.Diagnosis, p.PharmacyID,
		string(p.Status), p.PickupDate.Time(), p.PickupToken, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	for i, m := range p.Medications {
		_, err := q.Exec(ctx, `
			INSERT INTO prescription_item (prescription_id, line_no, medicine, dosage, frequency, duration, instructions)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, i+1, m.Medicine, m.Dosage, m.Frequency, m.Duration, m.Instructions)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := r.scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescription WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *prescriptionRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	p, err := r.scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescription WHERE appointment_id = $1`, appointmentID))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *prescriptionRepoPG) UpdateStatus(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET pharmacy_status=$2, dispensed_at=$3, updated_at=$4 WHERE id = $1`,
		p.ID, string(p.Status), p.DispensedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) AddNote(ctx context.Context, prescriptionID uuid.UUID, n *Note) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription_note (id, prescription_id, note, status_at_time, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		n.ID, prescriptionID, n.Note, string(n.StatusAtTime), n.CreatedAt)
	return err
}

func (r *prescriptionRepoPG) MaxPickupToken(ctx context.Context, pharmacyID string, date clock.Date) (int, error) {
	var max int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(pickup_token), 0) FROM prescription
		WHERE pharmacy_id = $1 AND pickup_date = $2`, pharmacyID, date.Time()).Scan(&max)
	return max, err
}

func (r *prescriptionRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	where, args := f.sql()
	q := r.conn(ctx)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM prescription`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM prescription%s ORDER BY created_at, pickup_token LIMIT $%d OFFSET $%d`,
		rxCols, where, n+1, n+2)
	rows, err := q.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := r.scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadChildren(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (f Filter) sql() (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PharmacyID != "" {
		add("pharmacy_id = $%d", f.PharmacyID)
	}
	if f.Status != "" {
		add("pharmacy_status = $%d", string(f.Status))
	}
	if f.PatientID != uuid.Nil {
		add("patient_id = $%d", f.PatientID)
	}
	if f.PickupToken != 0 {
		add("pickup_token = $%d", f.PickupToken)
	}
	if !f.From.IsZero() {
		add("pickup_date >= $%d", f.From.Time())
	}
	if !f.To.IsZero() {
		add("pickup_date <= $%d", f.To.Time())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// loadChildren fills lines and notes for a page of prescriptions with one
// query per child table.
func (r *prescriptionRepoPG) loadChildren(ctx context.Context, items []*Prescription) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Prescription, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, p := range items {
		byID[p.ID] = p
		ids = append(ids, p.ID)
		p.Medications = []Medication{}
		p.Notes = []Note{}
	}
	q := r.conn(ctx)

	rows, err := q.Query(ctx, `
		SELECT prescription_id, medicine, dosage, frequency, duration, instructions
		FROM prescription_item WHERE prescription_id = ANY($1) ORDER BY prescription_id, line_no`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id uuid.UUID
		var m Medication
		if err := rows.Scan(&id, &m.Medicine, &m.Dosage, &m.Frequency, &m.Duration, &m.Instructions); err != nil {
			rows.Close()
			return err
		}
		byID[id].Medications = append(byID[id].Medications, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `
		SELECT prescription_id, id, note, status_at_time, created_at
		FROM prescription_note WHERE prescription_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var n Note
		var status string
		if err := rows.Scan(&id, &n.ID, &n.Note, &status, &n.CreatedAt); err != nil {
			return err
		}
		n.StatusAtTime = Status(status)
		byID[id].Notes = append(byID[id].Notes, n)
	}
	return rows.Err()
}

package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
)

type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists appointments in Postgres. Create serializes writers
// per slot with a transaction scoped advisory lock before checking capacity.
type PostgresStore struct {
	db       pgxDB
	capacity int
	tracer   trace.Tracer
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool, capacity int) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return newPostgresStoreWithDB(pool, capacity)
}

func newPostgresStoreWithDB(db pgxDB, capacity int) *PostgresStore {
	if db == nil {
		panic("appointments: db required")
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &PostgresStore{
		db:       db,
		capacity: capacity,
		tracer:   otel.Tracer("hospital.internal.appointments"),
	}
}

const countActiveSQL = `SELECT COUNT(*) FROM appointments WHERE slot_date = $1 AND slot_time = $2 AND status = 'confirmed'`

func (s *PostgresStore) Create(ctx context.Context, req NewAppointment) (appt *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.create", trace.WithAttributes(
		attribute.String("service", string(req.Service)),
		attribute.String("slot_date", req.Date.String()),
	))
	defer span.End()

	if err := validateNew(req); err != nil {
		return nil, err
	}
	req.Time = slotClock(req.Time)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, slotLockKey(req.Date, req.Time)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: lock slot: %w", err)
	}

	var active int
	if err = tx.QueryRow(ctx, countActiveSQL, toPGDate(req.Date), toPGTime(req.Time)).Scan(&active); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: count slot: %w", err)
	}
	if active >= s.capacity {
		return nil, ErrConflict
	}

	out := Appointment{
		ID:           uuid.NewString(),
		Patient:      req.Patient,
		Service:      req.Service,
		Date:         req.Date,
		Time:         req.Time,
		Status:       StatusConfirmed,
		WaitEstimate: req.WaitEstimate,
		Confidence:   req.Confidence,
	}
	query := `
		INSERT INTO appointments (id, patient_name, patient_phone, service, slot_date, slot_time, status, wait_estimate_minutes, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, query,
		out.ID, out.Patient.Name, out.Patient.Phone, string(out.Service),
		toPGDate(out.Date), toPGTime(out.Time), string(out.Status),
		out.WaitEstimate, out.Confidence,
	).Scan(&out.CreatedAt)
	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: commit: %w", err)
	}
	return &out, nil
}

const appointmentColumns = `id::text, patient_name, patient_phone, service, slot_date, slot_time, status,
	wait_estimate_minutes, confidence, created_at, cancelled_at, previous_slot_date, previous_slot_time, rescheduled_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.get")
	defer span.End()

	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	a, err := scanAppointment(s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return &a, nil
}

// Cancel cancels the appointment sel picks. Slot selectors lock the matching
// rows so the ambiguity check and the update see the same set.
func (s *PostgresStore) Cancel(ctx context.Context, sel Selector) (appt *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.cancel")
	defer span.End()

	if err := sel.validate(); err != nil {
		return nil, err
	}
	if id := strings.TrimSpace(sel.ID); id != "" {
		return s.cancelByID(ctx, s.db, id)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `SELECT id::text FROM appointments WHERE slot_date = $1 AND slot_time = $2 AND status = 'confirmed'`
	args := []any{toPGDate(sel.Date), toPGTime(slotClock(sel.Time))}
	if name := strings.TrimSpace(sel.PatientName); name != "" {
		query += ` AND lower(patient_name) = lower($3)`
		args = append(args, name)
	}
	rows, err := tx.Query(ctx, query+` FOR UPDATE`, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: select for cancel: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: select for cancel: %w", err)
	}
	switch len(ids) {
	case 0:
		return nil, ErrNotFound
	case 1:
	default:
		return nil, ErrAmbiguous
	}

	if appt, err = s.cancelByID(ctx, tx, ids[0]); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: commit: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) cancelByID(ctx context.Context, q rowQuerier, id string) (*Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `
		UPDATE appointments
		SET status = 'cancelled', cancelled_at = now()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING ` + appointmentColumns
	a, err := scanAppointment(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: cancel: %w", err)
	}
	return &a, nil
}

// Reschedule moves a confirmed appointment to a new slot, keeping the slot it
// came from. The target slot is locked and counted like Create does.
func (s *PostgresStore) Reschedule(ctx context.Context, move Move) (appt *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.reschedule", trace.WithAttributes(
		attribute.String("slot_date", move.Date.String()),
	))
	defer span.End()

	if err := move.validate(); err != nil {
		return nil, err
	}
	move.Time = slotClock(move.Time)
	if _, err := uuid.Parse(strings.TrimSpace(move.ID)); err != nil {
		return nil, ErrNotFound
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		curDate time.Time
		curTime pgtype.Time
	)
	err = tx.QueryRow(ctx, `SELECT slot_date, slot_time FROM appointments WHERE id = $1 AND status = 'confirmed' FOR UPDATE`,
		strings.TrimSpace(move.ID)).Scan(&curDate, &curTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: load for reschedule: %w", err)
	}
	if civil.DateOf(curDate) == move.Date && fromPGTime(curTime) == move.Time {
		return nil, fmt.Errorf("%w: appointment is already booked at that time", scheduling.ErrInvalidInput)
	}

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, slotLockKey(move.Date, move.Time)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: lock slot: %w", err)
	}
	var active int
	if err = tx.QueryRow(ctx, countActiveSQL, toPGDate(move.Date), toPGTime(move.Time)).Scan(&active); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: count slot: %w", err)
	}
	if active >= s.capacity {
		return nil, ErrConflict
	}

	query := `
		UPDATE appointments
		SET previous_slot_date = slot_date, previous_slot_time = slot_time,
			slot_date = $2, slot_time = $3, wait_estimate_minutes = $4, confidence = $5,
			rescheduled_at = now()
		WHERE id = $1
		RETURNING ` + appointmentColumns
	a, err := scanAppointment(tx.QueryRow(ctx, query, strings.TrimSpace(move.ID),
		toPGDate(move.Date), toPGTime(move.Time), move.WaitEstimate, move.Confidence))
	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("appointments: reschedule: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: commit: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.list")
	defer span.End()

	var (
		conds []string
		args  []any
	)
	if filter.Date != nil {
		args = append(args, toPGDate(*filter.Date))
		conds = append(conds, fmt.Sprintf("slot_date = $%d", len(args)))
	}
	if filter.Service != "" {
		args = append(args, string(filter.Service))
		conds = append(conds, fmt.Sprintf("service = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + appointmentColumns + " FROM appointments")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY slot_date, slot_time, service")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, b.String(), args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return out, nil
}

const statsSQL = `
	SELECT service, COUNT(*), COALESCE(SUM(wait_estimate_minutes), 0),
		COUNT(*) FILTER (WHERE slot_date + slot_time > $1)
	FROM appointments
	WHERE status = 'confirmed'
	GROUP BY service
`

func (s *PostgresStore) Stats(ctx context.Context, after civil.DateTime) (Stats, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.stats")
	defer span.End()

	var stats Stats
	rows, err := s.db.Query(ctx, statsSQL, toPGTimestamp(after))
	if err != nil {
		span.RecordError(err)
		return stats, fmt.Errorf("appointments: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			service  string
			count    int
			waitSum  float64
			upcoming int
		)
		if err := rows.Scan(&service, &count, &waitSum, &upcoming); err != nil {
			span.RecordError(err)
			return stats, fmt.Errorf("appointments: scan stats: %w", err)
		}
		stats.add(scheduling.ServiceType(service), count, waitSum, upcoming)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return stats, fmt.Errorf("appointments: stats rows: %w", err)
	}
	stats.finish()
	return stats, nil
}

func (s *PostgresStore) Next(ctx context.Context, after civil.DateTime) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.next")
	defer span.End()

	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE status = 'confirmed' AND slot_date + slot_time > $1
		ORDER BY slot_date, slot_time, service
		LIMIT 1`
	a, err := scanAppointment(s.db.QueryRow(ctx, query, toPGTimestamp(after)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: next: %w", err)
	}
	return &a, nil
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var (
		a           Appointment
		service     string
		status      string
		slotDate    time.Time
		slotTime    pgtype.Time
		cancelledAt *time.Time
		prevDate    *time.Time
		prevTime    pgtype.Time
		rescheduled *time.Time
	)
	if err := row.Scan(&a.ID, &a.Patient.Name, &a.Patient.Phone, &service, &slotDate, &slotTime, &status,
		&a.WaitEstimate, &a.Confidence, &a.CreatedAt, &cancelledAt, &prevDate, &prevTime, &rescheduled); err != nil {
		return Appointment{}, err
	}
	a.Service = scheduling.ServiceType(service)
	a.Status = Status(status)
	a.Date = civil.DateOf(slotDate)
	a.Time = fromPGTime(slotTime)
	a.CancelledAt = cancelledAt
	if prevDate != nil && prevTime.Valid {
		d, t := civil.DateOf(*prevDate), fromPGTime(prevTime)
		a.PreviousDate, a.PreviousTime = &d, &t
	}
	a.RescheduledAt = rescheduled
	return a, nil
}

func (s *PostgresStore) HasConflict(ctx context.Context, date civil.Date, t civil.Time, service scheduling.ServiceType) (bool, error) {
	var active int
	if err := s.db.QueryRow(ctx, countActiveSQL, toPGDate(date), toPGTime(slotClock(t))).Scan(&active); err != nil {
		return false, fmt.Errorf("appointments: conflict check: %w", err)
	}
	return active >= s.capacity, nil
}

func toPGDate(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// toPGTimestamp renders a hospital-local time for comparison with
// slot_date + slot_time, which is a timestamp without time zone.
func toPGTimestamp(dt civil.DateTime) time.Time {
	return dt.In(time.UTC)
}

func toPGTime(t civil.Time) pgtype.Time {
	us := int64(t.Hour)*3_600_000_000 + int64(t.Minute)*60_000_000 + int64(t.Second)*1_000_000
	return pgtype.Time{Microseconds: us, Valid: true}
}

func fromPGTime(t pgtype.Time) civil.Time {
	if !t.Valid {
		return civil.Time{}
	}
	secs := t.Microseconds / 1_000_000
	return civil.Time{Hour: int(secs / 3600), Minute: int(secs % 3600 / 60), Second: int(secs % 60)}
}

// slotLockKey maps a slot to a stable advisory lock key.
func slotLockKey(d civil.Date, t civil.Time) int64 {
	epoch := civil.Date{Year: 1970, Month: time.January, Day: 1}
	return int64(d.DaysSince(epoch))*1440 + int64(t.Hour*60+t.Minute)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

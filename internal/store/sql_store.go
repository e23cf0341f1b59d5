package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"parking-manager/internal/parking"
)

type spaceRow struct {
	ID           string    `db:"id"`
	Code         string    `db:"code"`
	FloorLevel   string    `db:"floor_level"`
	IsAccessible bool      `db:"is_accessible"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r spaceRow) toSpace() parking.Space {
	return parking.Space{
		ID:           r.ID,
		Code:         r.Code,
		Floor:        parking.Floor(r.FloorLevel),
		IsAccessible: r.IsAccessible,
		Status:       parking.SpaceStatus(r.Status),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type sessionRow struct {
	ID           string       `db:"id"`
	LicensePlate string       `db:"license_plate"`
	PersonID     int64        `db:"person_id"`
	SpaceID      string       `db:"space_id"`
	EntryTime    time.Time    `db:"entry_time"`
	ExitTime     sql.NullTime `db:"exit_time"`
	BilledHours  int64        `db:"billed_hours"`
	FeeCents     int64        `db:"fee_cents"`
	Status       string       `db:"status"`
}

func (r sessionRow) toSession() parking.Session {
	s := parking.Session{
		ID:           r.ID,
		LicensePlate: r.LicensePlate,
		PersonID:     r.PersonID,
		SpaceID:      r.SpaceID,
		EntryTime:    r.EntryTime.UTC(),
		BilledHours:  r.BilledHours,
		Fee:          parking.Money(r.FeeCents),
		Status:       parking.SessionStatus(r.Status),
	}
	if r.ExitTime.Valid {
		t := r.ExitTime.Time.UTC()
		s.ExitTime = &t
	}
	return s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// SQLStore implements parking.Store on top of a sqlx connection.
type SQLStore struct {
	db *sqlx.DB
}

var _ parking.Store = (*SQLStore)(nil)

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) LoadSpaces(ctx context.Context) ([]parking.Space, error) {
	var rows []spaceRow
	query := `SELECT id, code, floor_level, is_accessible, status, created_at, updated_at
		FROM parking_spaces ORDER BY floor_level, code`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	spaces := make([]parking.Space, len(rows))
	for i, r := range rows {
		spaces[i] = r.toSpace()
	}
	return spaces, nil
}

func (s *SQLStore) LoadSessions(ctx context.Context) ([]parking.Session, error) {
	var rows []sessionRow
	query := `SELECT id, license_plate, person_id, space_id, entry_time, exit_time,
		billed_hours, fee_cents, status
		FROM parking_sessions ORDER BY entry_time, id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	sessions := make([]parking.Session, len(rows))
	for i, r := range rows {
		sessions[i] = r.toSession()
	}
	return sessions, nil
}

const upsertSpace = `INSERT INTO parking_spaces
	(id, code, floor_level, is_accessible, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		code = excluded.code,
		floor_level = excluded.floor_level,
		is_accessible = excluded.is_accessible,
		status = excluded.status,
		updated_at = excluded.updated_at`

const upsertSession = `INSERT INTO parking_sessions
	(id, license_plate, person_id, space_id, entry_time, exit_time, billed_hours, fee_cents, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		exit_time = excluded.exit_time,
		billed_hours = excluded.billed_hours,
		fee_cents = excluded.fee_cents,
		status = excluded.status`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

func saveSpace(ctx context.Context, db execer, space parking.Space) error {
	_, err := db.ExecContext(ctx, db.Rebind(upsertSpace),
		space.ID, space.Code, string(space.Floor), space.IsAccessible,
		string(space.Status), space.CreatedAt, space.UpdatedAt)
	return err
}

func saveSession(ctx context.Context, db execer, session parking.Session) error {
	_, err := db.ExecContext(ctx, db.Rebind(upsertSession),
		session.ID, session.LicensePlate, session.PersonID, session.SpaceID,
		session.EntryTime, nullTime(session.ExitTime), session.BilledHours,
		int64(session.Fee), string(session.Status))
	return err
}

func (s *SQLStore) SaveSpace(ctx context.Context, space parking.Space) error {
	return saveSpace(ctx, s.db, space)
}

func (s *SQLStore) DeleteSpace(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM parking_spaces WHERE id = ?`), id)
	return err
}

func (s *SQLStore) SaveEntry(ctx context.Context, session parking.Session, space parking.Space) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := saveSpace(ctx, tx, space); err != nil {
			return fmt.Errorf("save space: %w", err)
		}
		if err := saveSession(ctx, tx, session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) SaveClose(ctx context.Context, session parking.Session, space parking.Space) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := saveSession(ctx, tx, session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		if err := saveSpace(ctx, tx, space); err != nil {
			return fmt.Errorf("save space: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

package territory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"territorios/internal/adapters/storage"
	domain "territorios/internal/domain/territory"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const territoryColumns = `id, name, status, publisher, start_date, end_date, notes, image, map_url`

// GetByID retrieves a territory with its history.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Territory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+territoryColumns+` FROM territory WHERE id = ?`, strings.TrimSpace(id))
	t, err := scanTerritory(row)
	if err == sql.ErrNoRows {
		return domain.Territory{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Territory{}, err
	}

	history, err := s.history(ctx, t.ID)
	if err != nil {
		return domain.Territory{}, err
	}
	t.History = history
	return t, nil
}

// Save inserts or updates a territory and appends any new history entries.
// PRE: entity has been validated
// POST: live fields overwritten; stored history rows are never rewritten
// INVARIANT: insertion order of new territories is kept for List
func (s *SQLiteStore) Save(ctx context.Context, t domain.Territory) error {
	if err := t.Validate(); err != nil {
		return err
	}
	id := strings.TrimSpace(t.ID)
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO territory (`+territoryColumns+`, position, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
		   (SELECT COALESCE(MAX(position), 0) + 1 FROM territory), ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, status=excluded.status, publisher=excluded.publisher,
		   start_date=excluded.start_date, end_date=excluded.end_date, notes=excluded.notes,
		   image=excluded.image, map_url=excluded.map_url, updated_at=excluded.updated_at`,
		id, t.Name, t.Status, t.Publisher, t.StartDate, t.EndDate, t.Notes, t.Image, t.MapURL, now)
	if err != nil {
		return fmt.Errorf("upsert territory %s: %w", id, err)
	}

	var stored int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM territory_assignment WHERE territory_id = ?`, id).Scan(&stored); err != nil {
		return err
	}
	if len(t.History) < stored {
		return fmt.Errorf("%w: %s has %d entries, got %d", ErrHistoryRewrite, id, stored, len(t.History))
	}
	for seq := stored; seq < len(t.History); seq++ {
		a := t.History[seq]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO territory_assignment (id, territory_id, seq, publisher, start_date, end_date, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), id, seq, a.Publisher, a.StartDate, a.EndDate, a.Status, now)
		if err != nil {
			return fmt.Errorf("append history %s/%d: %w", id, seq, err)
		}
	}

	return tx.Commit()
}

// List returns every territory with its history in insertion order.
// PRE: none
// POST: History entries ordered oldest first
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Territory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+territoryColumns+` FROM territory ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	var list []domain.Territory
	for rows.Next() {
		t, err := scanTerritory(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	all, err := s.allHistory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].History = all[list[i].ID]
	}
	return list, nil
}

// Count returns the number of stored territories.
// PRE: none
// POST: Returns count >= 0
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM territory`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) history(ctx context.Context, id string) ([]domain.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT territory_id, publisher, start_date, end_date, status
		 FROM territory_assignment WHERE territory_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	grouped, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	return grouped[id], nil
}

func (s *SQLiteStore) allHistory(ctx context.Context) (map[string][]domain.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT territory_id, publisher, start_date, end_date, status
		 FROM territory_assignment ORDER BY territory_id, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTerritory(row scanner) (domain.Territory, error) {
	var t domain.Territory
	err := row.Scan(&t.ID, &t.Name, &t.Status, &t.Publisher, &t.StartDate, &t.EndDate,
		&t.Notes, &t.Image, &t.MapURL)
	return t, err
}

func scanAssignments(rows *sql.Rows) (map[string][]domain.Assignment, error) {
	out := make(map[string][]domain.Assignment)
	for rows.Next() {
		var id string
		var a domain.Assignment
		if err := rows.Scan(&id, &a.Publisher, &a.StartDate, &a.EndDate, &a.Status); err != nil {
			return nil, err
		}
		out[id] = append(out[id], a)
	}
	return out, rows.Err()
}

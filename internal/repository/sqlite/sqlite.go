package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"valuestream/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func dsn(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		return path + sep(path) + pragmas
	}
	return path + sep(path) + "_pragma=journal_mode(WAL)&" + pragmas
}

func sep(path string) string {
	if strings.Contains(path, "?") {
		return "&"
	}
	return "?"
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS maps (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		metrics BLOB,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS processes (
		map_id TEXT NOT NULL,
		id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		position_x REAL NOT NULL DEFAULT 0,
		position_y REAL NOT NULL DEFAULT 0,
		process_time REAL NOT NULL DEFAULT 0,
		complete_accurate REAL,
		PRIMARY KEY (map_id, id),
		FOREIGN KEY (map_id) REFERENCES maps(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS connections (
		map_id TEXT NOT NULL,
		id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		is_rework INTEGER NOT NULL DEFAULT 0,
		wait_time REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (map_id, id),
		FOREIGN KEY (map_id) REFERENCES maps(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_processes_map ON processes(map_id, ordinal);
	CREATE INDEX IF NOT EXISTS idx_connections_map ON connections(map_id, ordinal);
	`

	_, err := r.db.Exec(schema)
	return err
}

// ListMaps returns a summary of every stored map, most recently updated first
func (r *Repository) ListMaps(ctx context.Context) ([]domain.MapSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.title, m.metrics, m.updated_at,
			(SELECT COUNT(*) FROM processes p WHERE p.map_id = m.id),
			(SELECT COUNT(*) FROM connections c WHERE c.map_id = m.id)
		FROM maps m
		ORDER BY m.updated_at DESC, m.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query maps: %w", err)
	}
	defer rows.Close()

	summaries := []domain.MapSummary{}
	for rows.Next() {
		var (
			s         domain.MapSummary
			blob      []byte
			updatedAt string
		)
		if err := rows.Scan(&s.ID, &s.Title, &blob, &updatedAt, &s.ProcessCount, &s.ConnectionCount); err != nil {
			return nil, fmt.Errorf("failed to scan map: %w", err)
		}

		metrics, err := decodeMetrics(blob)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", s.ID, err)
		}
		s.TotalLeadTime = metrics.TotalLeadTime
		s.WorstCaseLeadTime = metrics.WorstCaseLeadTime
		s.ValueAddedRatio = metrics.ValueAddedRatio
		s.UpdatedAt = parseTime(updatedAt)

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating maps: %w", err)
	}

	return summaries, nil
}

// GetMap loads a map with its processes and connections in stored order
func (r *Repository) GetMap(ctx context.Context, id string) (*domain.ValueStreamMap, error) {
	var (
		title string
		blob  []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT title, metrics FROM maps WHERE id = ?
	`, id).Scan(&title, &blob)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query map: %w", err)
	}

	metrics, err := decodeMetrics(blob)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", id, err)
	}

	m := &domain.ValueStreamMap{
		ID:          id,
		Title:       title,
		Processes:   []domain.ProcessBlock{},
		Connections: []domain.Connection{},
		Metrics:     metrics,
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+processColumns+` FROM processes WHERE map_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row processRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan process: %w", err)
		}
		m.Processes = append(m.Processes, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processes: %w", err)
	}

	connRows, err := r.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE map_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer connRows.Close()

	for connRows.Next() {
		var row connectionRow
		if err := connRows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		m.Connections = append(m.Connections, row.toDomain())
	}
	if err := connRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return m, nil
}

// CountMaps returns the number of stored maps
func (r *Repository) CountMaps(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM maps`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count maps: %w", err)
	}
	return n, nil
}

// SaveMap inserts or replaces a map and all of its children atomically
func (r *Repository) SaveMap(ctx context.Context, m *domain.ValueStreamMap) error {
	blob, err := encodeMetrics(m.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO maps (id, title, metrics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			metrics = excluded.metrics,
			updated_at = excluded.updated_at
	`, m.ID, m.Title, blob, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert map: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM processes WHERE map_id = ?`, m.ID); err != nil {
		return fmt.Errorf("failed to clear processes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE map_id = ?`, m.ID); err != nil {
		return fmt.Errorf("failed to clear connections: %w", err)
	}

	processStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO processes (map_id, ordinal, `+processColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare process insert: %w", err)
	}
	defer processStmt.Close()

	for i := range m.Processes {
		args := append([]interface{}{m.ID, i}, processInsertArgs(&m.Processes[i])...)
		if _, err := processStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert process %s: %w", m.Processes[i].ID, err)
		}
	}

	connStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO connections (map_id, ordinal, `+connectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare connection insert: %w", err)
	}
	defer connStmt.Close()

	for i := range m.Connections {
		args := append([]interface{}{m.ID, i}, connectionInsertArgs(&m.Connections[i])...)
		if _, err := connStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert connection %s: %w", m.Connections[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteMap removes a map; processes and connections cascade
func (r *Repository) DeleteMap(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM maps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete map: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

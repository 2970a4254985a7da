package session

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeFmt = "2006-01-02T15:04:05Z"

// Store is the durable record of sessions/tabs/panes described in
// spec.md §4.5 — enough to restore the shape of a session after a
// daemon restart. PTYs themselves are never persisted; only the
// descriptors needed to respawn a shell in the right place.
//
// Grounded on _examples/ehrlich-b-wingthing/internal/store/store.go
// (embed.FS migration runner, WAL pragma) and tasks.go (query/scan
// style). libs: modernc.org/sqlite, the only cgo-free embedded ACID
// store in the pack.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) the sqlite database at dsn and
// applies any pending migrations.
func OpenStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session store: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: enable foreign keys: %w", err)
	}
	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: migrate: %w", err)
	}
	return st, nil
}

func (st *Store) Close() error { return st.db.Close() }

func (st *Store) migrate() error {
	if _, err := st.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := st.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		tx, err := st.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// SessionRow is the persisted shape of a Session.
type SessionRow struct {
	ID             uint64
	Name           string
	CreatedAt      time.Time
	LastAttachedAt *time.Time
}

// TabRow is the persisted shape of a Tab.
type TabRow struct {
	ID        uint64
	SessionID uint64
	Title     string
	CreatedAt time.Time
}

// PaneRow is the persisted shape of a Pane descriptor.
type PaneRow struct {
	ID        uint64
	TabID     uint64
	Shell     string
	CWD       string
	Cols      int
	Rows      int
	CreatedAt time.Time
}

func (st *Store) InsertSession(r SessionRow) (uint64, error) {
	res, err := st.db.Exec(`INSERT INTO sessions (name, created_at, last_attached_at) VALUES (?, ?, ?)`,
		r.Name, r.CreatedAt.UTC().Format(timeFmt), nullableTime(r.LastAttachedAt))
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert session: last insert id: %w", err)
	}
	return uint64(id), nil
}

func (st *Store) TouchSessionAttached(id uint64, when time.Time) error {
	_, err := st.db.Exec(`UPDATE sessions SET last_attached_at = ? WHERE id = ?`, when.UTC().Format(timeFmt), id)
	if err != nil {
		return fmt.Errorf("touch session %d: %w", id, err)
	}
	return nil
}

func (st *Store) RenameSession(id uint64, name string) error {
	_, err := st.db.Exec(`UPDATE sessions SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename session %d: %w", id, err)
	}
	return nil
}

func (st *Store) DeleteSession(id uint64) error {
	_, err := st.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

func (st *Store) ListSessions() ([]SessionRow, error) {
	rows, err := st.db.Query(`SELECT id, name, created_at, last_attached_at FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var createdAt string
		var lastAttached *string
		if err := rows.Scan(&r.ID, &r.Name, &createdAt, &lastAttached); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		r.LastAttachedAt = parseTimePtr(lastAttached)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (st *Store) InsertTab(r TabRow) (uint64, error) {
	res, err := st.db.Exec(`INSERT INTO tabs (session_id, title, created_at) VALUES (?, ?, ?)`,
		r.SessionID, r.Title, r.CreatedAt.UTC().Format(timeFmt))
	if err != nil {
		return 0, fmt.Errorf("insert tab: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert tab: last insert id: %w", err)
	}
	return uint64(id), nil
}

func (st *Store) ListTabs(sessionID uint64) ([]TabRow, error) {
	rows, err := st.db.Query(`SELECT id, session_id, title, created_at FROM tabs WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	defer rows.Close()

	var out []TabRow
	for rows.Next() {
		var r TabRow
		var createdAt string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tab: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (st *Store) InsertPane(r PaneRow) (uint64, error) {
	res, err := st.db.Exec(`INSERT INTO panes (tab_id, shell, cwd, cols, rows, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.TabID, r.Shell, r.CWD, r.Cols, r.Rows, r.CreatedAt.UTC().Format(timeFmt))
	if err != nil {
		return 0, fmt.Errorf("insert pane: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert pane: last insert id: %w", err)
	}
	return uint64(id), nil
}

func (st *Store) ListPanes(tabID uint64) ([]PaneRow, error) {
	rows, err := st.db.Query(`SELECT id, tab_id, shell, cwd, cols, rows, created_at FROM panes WHERE tab_id = ? ORDER BY id`, tabID)
	if err != nil {
		return nil, fmt.Errorf("list panes: %w", err)
	}
	defer rows.Close()

	var out []PaneRow
	for rows.Next() {
		var r PaneRow
		var createdAt string
		if err := rows.Scan(&r.ID, &r.TabID, &r.Shell, &r.CWD, &r.Cols, &r.Rows, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pane: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFmt)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeFmt, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseTime(*s)
	if t.IsZero() {
		return nil
	}
	return &t
}

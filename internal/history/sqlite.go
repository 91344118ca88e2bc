package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	// SQLite driver, referenced only through the connection string.
	_ "github.com/mattn/go-sqlite3"

	"github.com/hadikhanhk786/live-class/pkg/interfaces"
	"github.com/hadikhanhk786/live-class/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS classes (
	name       TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS chat_history (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	classroom TEXT NOT NULL,
	username  TEXT NOT NULL,
	role      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	message   TEXT NOT NULL,
	file_id   TEXT,
	file_name TEXT,
	timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_history_classroom ON chat_history(classroom);
`

// writeOperation is one queued database write. Fire-and-forget callers
// leave result nil; synchronous callers wait on it.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// SQLiteStore implements the durable history store and the class
// directory on a single SQLite file. All writes funnel through one
// writer goroutine — SQLite performs best with a single writer — and
// event appends are fire-and-forget with one retry after a backoff, so
// a stalled disk never blocks real-time delivery.
type SQLiteStore struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex

	retryBackoff time.Duration
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applySQLitePragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		writeChannel: make(chan writeOperation, 256),
		shutdown:     make(chan struct{}),
		retryBackoff: 5 * time.Second,
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop processes queued writes in a single goroutine, retrying each
// failed operation once after the backoff. Failures after the retry are
// logged; durability here is best-effort by design.
func (s *SQLiteStore) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			s.execute(op)

		case <-s.shutdown:
			// Drain whatever is already queued before exiting so tests
			// and clean shutdowns observe their appends.
			for {
				select {
				case op := <-s.writeChannel:
					s.execute(op)
				default:
					log.Println("History write loop shutting down")
					return
				}
			}
		}
	}
}

func (s *SQLiteStore) execute(op writeOperation) {
	err := op.operation(s.db)
	if err != nil {
		log.Printf("History write failed, retrying in %v: %v", s.retryBackoff, err)
		time.Sleep(s.retryBackoff)
		if err = op.operation(s.db); err != nil {
			log.Printf("History write failed after retry: %v", err)
		}
	}
	if op.result != nil {
		op.result <- err
	}
}

// executeWrite queues a write and waits for it to complete.
func (s *SQLiteStore) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-s.shutdown:
		return interfaces.ErrStoreClosed
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	}
}

// Append enqueues event for insertion and returns immediately. The only
// errors are a closed store or a saturated queue; an insert failure is
// handled (retried, then logged) by the write loop.
func (s *SQLiteStore) Append(ctx context.Context, event *types.Event) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	s.mu.RUnlock()

	op := writeOperation{operation: func(db *sql.DB) error {
		return insertEvent(db, event)
	}}

	select {
	case s.writeChannel <- op:
		return nil
	default:
		return interfaces.ErrAppendQueueFull
	}
}

func insertEvent(db *sql.DB, event *types.Event) error {
	var fileID, fileName sql.NullString
	if event.File != nil {
		fileID = sql.NullString{String: event.File.ID, Valid: true}
		fileName = sql.NullString{String: event.File.Name, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO chat_history (id, classroom, username, role, kind, message, file_id, file_name, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Classroom,
		event.Username,
		event.Role,
		event.Kind,
		event.Message,
		fileID,
		fileName,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// LoadHistory returns every stored event for classroom in append order.
// The autoincrement sequence, not the wall-clock timestamp, defines the
// order, so same-millisecond events never reorder.
func (s *SQLiteStore) LoadHistory(ctx context.Context, classroom string) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, classroom, username, role, kind, message, file_id, file_name, timestamp
		FROM chat_history
		WHERE classroom = ?
		ORDER BY seq ASC`, classroom)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*types.Event
	for rows.Next() {
		var event types.Event
		var fileID, fileName sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.Classroom,
			&event.Username,
			&event.Role,
			&event.Kind,
			&event.Message,
			&fileID,
			&fileName,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		if fileID.Valid || fileName.Valid {
			event.File = &types.FileInfo{ID: fileID.String, Name: fileName.String}
		}

		events = append(events, &event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// Exists reports whether classroom has been created in the directory.
func (s *SQLiteStore) Exists(ctx context.Context, classroom string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM classes WHERE name = ?", classroom).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query classroom: %w", err)
	}
	return true, nil
}

// CreateClass registers a classroom name. Fails with ErrClassExists if
// the name is taken.
func (s *SQLiteStore) CreateClass(ctx context.Context, classroom string) error {
	return s.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO classes (name) VALUES (?)", classroom)
		if err != nil {
			return fmt.Errorf("failed to insert classroom: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read insert result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrClassExists
		}
		return nil
	})
}

// ListClasses returns every registered classroom name.
func (s *SQLiteStore) ListClasses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM classes ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan class row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// HealthCheck validates connectivity and basic read access.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.QueryContext(ctx, "SELECT COUNT(*) FROM classes LIMIT 1"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close drains pending writes and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applySQLitePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}

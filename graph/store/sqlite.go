package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/flowkit/wfgraph/graph"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed implementation of graph.Store.
//
// It stores every WorkflowState in a single file, designed for:
//   - Development and testing with zero setup
//   - Single-process workflows
//   - Local workflows requiring persistence across restarts
//
// SQLiteStore uses WAL mode for concurrent reads and a busy timeout so
// writers don't immediately fail under contention.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral in-process database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	statesTable := `
		CREATE TABLE IF NOT EXISTS workflow_states (
			id TEXT NOT NULL PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			state TEXT NOT NULL,
			saved_seq INTEGER NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, statesTable); err != nil {
		return fmt.Errorf("failed to create workflow_states table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_states_workflow ON workflow_states(workflow_id, saved_seq DESC)"); err != nil {
		return fmt.Errorf("failed to create idx_states_workflow: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_states_thread ON workflow_states(thread_id, saved_seq DESC)"); err != nil {
		return fmt.Errorf("failed to create idx_states_thread: %w", err)
	}
	return nil
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (graph.WorkflowState, error) {
	if err := s.checkOpen(); err != nil {
		return graph.WorkflowState{}, err
	}

	var stateJSON string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM workflow_states WHERE id = ?`, id).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return graph.WorkflowState{}, graph.ErrRunNotFound
	}
	if err != nil {
		return graph.WorkflowState{}, fmt.Errorf("failed to load state: %w", err)
	}

	var state graph.WorkflowState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return graph.WorkflowState{}, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, nil
}

func (s *SQLiteStore) ListByWorkflow(ctx context.Context, workflowID string) ([]graph.WorkflowState, error) {
	return s.listBy(ctx, "workflow_id", workflowID)
}

func (s *SQLiteStore) ListByThread(ctx context.Context, threadID string) ([]graph.WorkflowState, error) {
	return s.listBy(ctx, "thread_id", threadID)
}

func (s *SQLiteStore) listBy(ctx context.Context, column, value string) ([]graph.WorkflowState, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	// #nosec G201 -- column is one of two fixed literals, never user input
	query := fmt.Sprintf(`SELECT state FROM workflow_states WHERE %s = ? ORDER BY saved_seq DESC`, column)
	rows, err := s.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.WorkflowState
	for rows.Next() {
		var stateJSON string
		if err := rows.Scan(&stateJSON); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		var state graph.WorkflowState
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
		out = append(out, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state graph.WorkflowState) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO workflow_states (id, workflow_id, thread_id, state, saved_seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(saved_seq), 0) + 1 FROM workflow_states))
		ON CONFLICT(id) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			thread_id = excluded.thread_id,
			state = excluded.state,
			saved_seq = (SELECT COALESCE(MAX(saved_seq), 0) + 1 FROM workflow_states)
	`
	if _, err := s.db.ExecContext(ctx, query, state.ID, state.WorkflowID, state.ThreadID, string(stateJSON)); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflow_states WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_states WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the underlying database connection. Calling Close more than
// once is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path this store was opened with.
func (s *SQLiteStore) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

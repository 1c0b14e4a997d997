package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/flowkit/wfgraph/graph"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed implementation of graph.Store.
//
// Designed for production workflows that need to survive process restarts
// and be shared across multiple worker processes. Uses connection pooling;
// callers needing cross-operation transactions should wrap Save/Get calls
// at a higher layer since graph.Store makes no such guarantee.
//
// The DSN format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example: user:pass@tcp(localhost:3306)/workflows?parseTime=true
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a MySQL-backed store using dsn, verifying
// connectivity and creating the workflow_states table if absent.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	m := &MySQLStore{db: db}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return m, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	statesTable := `
		CREATE TABLE IF NOT EXISTS workflow_states (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL,
			thread_id VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			saved_seq BIGINT AUTO_INCREMENT,
			INDEX idx_workflow (workflow_id, saved_seq),
			INDEX idx_thread (thread_id, saved_seq),
			UNIQUE KEY unique_seq (saved_seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, statesTable); err != nil {
		return fmt.Errorf("failed to create workflow_states table: %w", err)
	}
	return nil
}

func (m *MySQLStore) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

func (m *MySQLStore) Get(ctx context.Context, id string) (graph.WorkflowState, error) {
	if err := m.checkOpen(); err != nil {
		return graph.WorkflowState{}, err
	}

	var stateJSON string
	err := m.db.QueryRowContext(ctx, `SELECT state FROM workflow_states WHERE id = ?`, id).Scan(&stateJSON)
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

func (m *MySQLStore) ListByWorkflow(ctx context.Context, workflowID string) ([]graph.WorkflowState, error) {
	return m.listBy(ctx, "workflow_id", workflowID)
}

func (m *MySQLStore) ListByThread(ctx context.Context, threadID string) ([]graph.WorkflowState, error) {
	return m.listBy(ctx, "thread_id", threadID)
}

func (m *MySQLStore) listBy(ctx context.Context, column, value string) ([]graph.WorkflowState, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	// #nosec G201 -- column is one of two fixed literals, never user input
	query := fmt.Sprintf(`SELECT state FROM workflow_states WHERE %s = ? ORDER BY saved_seq DESC`, column)
	rows, err := m.db.QueryContext(ctx, query, value)
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

func (m *MySQLStore) Save(ctx context.Context, state graph.WorkflowState) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// REPLACE re-inserts an existing ID, so an overwrite takes a fresh
	// saved_seq and lists as most recently saved.
	query := `
		REPLACE INTO workflow_states (id, workflow_id, thread_id, state)
		VALUES (?, ?, ?, ?)
	`
	if _, err := m.db.ExecContext(ctx, query, state.ID, state.WorkflowID, state.ThreadID, string(stateJSON)); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (m *MySQLStore) Delete(ctx context.Context, id string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM workflow_states WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

func (m *MySQLStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	var count int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_states WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the underlying connection pool. Calling Close more than once
// is a no-op.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore) Ping(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

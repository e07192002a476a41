// Package query runs ad-hoc SQL against the cataloged views and persists
// each result set at an execution-unique location.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/strata"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Engine is a strata.QueryEngine backed by DuckDB. It resolves table names
// against the views the catalog maintains, so it shares the catalog's
// database handle.
type Engine struct {
	db         *sql.DB
	resultRoot string
	log        zerolog.Logger

	mu         sync.RWMutex
	executions map[string]strata.ExecutionStatus
}

// New creates an Engine writing results under resultRoot.
func New(db *sql.DB, resultRoot string, log zerolog.Logger) *Engine {
	return &Engine{
		db:         db,
		resultRoot: resultRoot,
		log:        log,
		executions: make(map[string]strata.ExecutionStatus),
	}
}

// Execute runs query against namespace and lands the result set at
// <resultRoot>/<execution-id>/results.csv. Each execution gets a fresh
// directory; results are never overwritten.
//
// Malformed SQL and unknown tables wrap strata.ErrQueryFailure with the
// engine's message intact. Failures to create or write the result location
// wrap strata.ErrStorageFailure.
func (e *Engine) Execute(ctx context.Context, query, namespace string) (*strata.ResultHandle, error) {
	if !identPattern.MatchString(namespace) {
		return nil, fmt.Errorf("%w: invalid namespace %q", strata.ErrQueryFailure, namespace)
	}

	id := uuid.NewString()
	dir := filepath.Join(e.resultRoot, id)
	resultPath := filepath.Join(dir, "results.csv")

	e.setStatus(id, strata.StatusRunning)
	handle := &strata.ResultHandle{
		ExecutionID:    id,
		ResultLocation: strata.ResourceRef(resultPath),
		Status:         strata.StatusRunning,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.setStatus(id, strata.StatusFailed)
		handle.Status = strata.StatusFailed
		return handle, fmt.Errorf("%w: creating %s: %v", strata.ErrStorageFailure, dir, err)
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		e.setStatus(id, strata.StatusFailed)
		handle.Status = strata.StatusFailed
		return handle, fmt.Errorf("%w: acquiring connection: %v", strata.ErrQueryFailure, err)
	}
	defer func() { _ = conn.Close() }()

	// Scope unqualified table names to the namespace for this connection.
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(`SET search_path = '%s'`, namespace)); err != nil {
		e.setStatus(id, strata.StatusFailed)
		handle.Status = strata.StatusFailed
		return handle, fmt.Errorf("%w: selecting namespace %s: %v", strata.ErrQueryFailure, namespace, err)
	}

	stmt := fmt.Sprintf(`COPY (%s) TO '%s' (HEADER, DELIMITER ',')`,
		strings.TrimSuffix(strings.TrimSpace(query), ";"),
		strings.ReplaceAll(resultPath, "'", "''"))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		e.setStatus(id, strata.StatusFailed)
		handle.Status = strata.StatusFailed
		return handle, fmt.Errorf("%w: %v", strata.ErrQueryFailure, err)
	}

	e.setStatus(id, strata.StatusSucceeded)
	handle.Status = strata.StatusSucceeded
	e.log.Info().
		Str("execution_id", id).
		Str("namespace", namespace).
		Str("result", resultPath).
		Msg("query execution succeeded")
	return handle, nil
}

// Status reports the state of a previous execution.
func (e *Engine) Status(_ context.Context, executionID string) (strata.ExecutionStatus, error) {
	e.mu.RLock()
	status, ok := e.executions[executionID]
	e.mu.RUnlock()
	if !ok {
		return strata.StatusFailed, fmt.Errorf("%w: execution %s", strata.ErrNotFound, executionID)
	}
	return status, nil
}

func (e *Engine) setStatus(id string, s strata.ExecutionStatus) {
	e.mu.Lock()
	e.executions[id] = s
	e.mu.Unlock()
}

package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for sequence persistence.
type Repository interface {
	// Definition CRUD
	GetByID(ctx context.Context, id string) (*Definition, error)
	GetBySlug(ctx context.Context, slug string) (*Definition, error)
	List(ctx context.Context) ([]Definition, error)
	Create(ctx context.Context, def *Definition) error
	Update(ctx context.Context, def *Definition) error
	Delete(ctx context.Context, id string) error

	// Execution logging
	CreateExecution(ctx context.Context, exec *Execution) error
	UpdateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	ListExecutions(ctx context.Context, sequenceID string, limit int) ([]Execution, error)
	PruneExecutions(ctx context.Context, sequenceID string, keep int) (int64, error)
}

// Execution list limits.
const (
	defaultExecutionLimit = 10
	maxExecutionLimit     = 100
)

// definitionColumns is the SELECT column list for definition queries.
const definitionColumns = `id, name, slug, description, play_on_start, skippable,
			remove_empty_references, groups_json, created_at, updated_at`

// executionColumns is the SELECT column list for execution queries.
const executionColumns = `id, sequence_id, status, triggered_by, started_at,
			completed_at, skipped_groups, skip_all, duration_ms`

// executionTimeLayout is fixed-width so that started_at sorts lexically.
const executionTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a definition by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM sequences WHERE id = ?`

	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying sequence by id: %w", err)
	}
	return def, nil
}

// GetBySlug retrieves a definition by its slug.
func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM sequences WHERE slug = ?`

	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying sequence by slug: %w", err)
	}
	return def, nil
}

// List retrieves all definitions ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM sequences ORDER BY name, slug`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sequences: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		def, scanErr := scanDefinition(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning sequence: %w", scanErr)
		}
		defs = append(defs, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sequences: %w", err)
	}
	return defs, nil
}

// Create inserts a new definition.
func (r *SQLiteRepository) Create(ctx context.Context, def *Definition) error {
	groupsJSON, err := json.Marshal(def.Groups)
	if err != nil {
		return fmt.Errorf("marshalling groups: %w", err)
	}

	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	query := `
		INSERT INTO sequences (
			id, name, slug, description, play_on_start, skippable,
			remove_empty_references, groups_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		def.ID,
		def.Name,
		def.Slug,
		nullableString(def.Description),
		boolToInt(def.PlayOnStart),
		boolToInt(def.Skippable),
		boolToInt(def.RemoveEmptyReferences),
		string(groupsJSON),
		def.CreatedAt.Format(time.RFC3339),
		def.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting sequence: %w", err)
	}
	return nil
}

// Update modifies an existing definition.
func (r *SQLiteRepository) Update(ctx context.Context, def *Definition) error {
	groupsJSON, err := json.Marshal(def.Groups)
	if err != nil {
		return fmt.Errorf("marshalling groups: %w", err)
	}

	def.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sequences SET
			name = ?, slug = ?, description = ?, play_on_start = ?, skippable = ?,
			remove_empty_references = ?, groups_json = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		def.Name,
		def.Slug,
		nullableString(def.Description),
		boolToInt(def.PlayOnStart),
		boolToInt(def.Skippable),
		boolToInt(def.RemoveEmptyReferences),
		string(groupsJSON),
		def.UpdatedAt.Format(time.RFC3339),
		def.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("updating sequence: %w", err)
	}
	return checkAffected(result, ErrNotFound)
}

// Delete removes a definition and, by cascade, its executions.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sequences WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting sequence: %w", err)
	}
	return checkAffected(result, ErrNotFound)
}

// CreateExecution inserts a new execution record.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, exec *Execution) error {
	skippedJSON, err := marshalSkipped(exec.SkippedGroups)
	if err != nil {
		return fmt.Errorf("marshalling skipped groups: %w", err)
	}

	query := `
		INSERT INTO sequence_executions (` + executionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		exec.ID,
		exec.SequenceID,
		string(exec.Status),
		exec.TriggeredBy,
		exec.StartedAt.UTC().Format(executionTimeLayout),
		nullableTime(exec.CompletedAt),
		skippedJSON,
		boolToInt(exec.SkipAll),
		exec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// UpdateExecution updates the mutable fields of an execution record.
func (r *SQLiteRepository) UpdateExecution(ctx context.Context, exec *Execution) error {
	skippedJSON, err := marshalSkipped(exec.SkippedGroups)
	if err != nil {
		return fmt.Errorf("marshalling skipped groups: %w", err)
	}

	query := `
		UPDATE sequence_executions SET
			status = ?, completed_at = ?, skipped_groups = ?, skip_all = ?, duration_ms = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(exec.Status),
		nullableTime(exec.CompletedAt),
		skippedJSON,
		boolToInt(exec.SkipAll),
		exec.DurationMS,
		exec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating execution: %w", err)
	}
	return checkAffected(result, ErrExecutionNotFound)
}

// GetExecution retrieves an execution by ID.
func (r *SQLiteRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM sequence_executions WHERE id = ?`

	exec, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	return exec, nil
}

// ListExecutions retrieves the most recent executions of a sequence.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, sequenceID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = defaultExecutionLimit
	}
	if limit > maxExecutionLimit {
		limit = maxExecutionLimit
	}

	query := `SELECT ` + executionColumns + `
		FROM sequence_executions
		WHERE sequence_id = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, sequenceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		exec, scanErr := scanExecution(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		executions = append(executions, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

// PruneExecutions deletes all but the newest keep executions of a sequence
// and returns how many rows were removed. keep <= 0 disables pruning.
func (r *SQLiteRepository) PruneExecutions(ctx context.Context, sequenceID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	query := `
		DELETE FROM sequence_executions
		WHERE sequence_id = ? AND id NOT IN (
			SELECT id FROM sequence_executions
			WHERE sequence_id = ?
			ORDER BY started_at DESC
			LIMIT ?
		)`

	result, err := r.db.ExecContext(ctx, query, sequenceID, sequenceID, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning executions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(scanner rowScanner) (*Definition, error) {
	var d Definition
	var description sql.NullString
	var playOnStart, skippable, removeEmpty int
	var groupsJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.Slug,
		&description,
		&playOnStart,
		&skippable,
		&removeEmpty,
		&groupsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		d.Description = &description.String
	}
	d.PlayOnStart = playOnStart != 0
	d.Skippable = skippable != 0
	d.RemoveEmptyReferences = removeEmpty != 0

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		d.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		d.UpdatedAt = t
	}

	if groupsJSON != "" && groupsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(groupsJSON), &d.Groups); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling groups: %w", jsonErr)
		}
	}
	if d.Groups == nil {
		d.Groups = []GroupDef{}
	}

	return &d, nil
}

func scanExecution(scanner rowScanner) (*Execution, error) {
	var e Execution
	var status, startedAt, skippedJSON string
	var completedAt sql.NullString
	var skipAll int
	var durationMS sql.NullInt64

	err := scanner.Scan(
		&e.ID,
		&e.SequenceID,
		&status,
		&e.TriggeredBy,
		&startedAt,
		&completedAt,
		&skippedJSON,
		&skipAll,
		&durationMS,
	)
	if err != nil {
		return nil, err
	}

	e.Status = ExecutionStatus(status)
	e.SkipAll = skipAll != 0
	if t, parseErr := time.Parse(executionTimeLayout, startedAt); parseErr == nil {
		e.StartedAt = t
	}
	if completedAt.Valid {
		if t, parseErr := time.Parse(executionTimeLayout, completedAt.String); parseErr == nil {
			e.CompletedAt = &t
		}
	}
	if durationMS.Valid {
		d := int(durationMS.Int64)
		e.DurationMS = &d
	}

	if jsonErr := json.Unmarshal([]byte(skippedJSON), &e.SkippedGroups); jsonErr != nil {
		return nil, fmt.Errorf("unmarshalling skipped groups: %w", jsonErr)
	}
	if e.SkippedGroups == nil {
		e.SkippedGroups = []int{}
	}

	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(executionTimeLayout), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalSkipped(groups []int) (string, error) {
	if len(groups) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(groups)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint")
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/continuation"
	"github.com/alcabon/callout/id"
)

// RegisterContinuation persists a new record.
func (s *Store) RegisterContinuation(ctx context.Context, r *continuation.Record) error {
	callsJSON, err := json.Marshal(r.Calls)
	if err != nil {
		return fmt.Errorf("callout/postgres: marshal calls: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO callout_continuations (
			id, handler, payload, calls, state, chain_depth, max_chain,
			deadline, parent_id, child_id, scope_app_id, scope_org_id,
			result, last_error, registered_at, resumed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18
		)`,
		r.ID.String(), r.Handler, r.Payload, callsJSON, string(r.State),
		r.ChainDepth, r.MaxChain,
		r.Deadline, r.ParentID.String(), r.ChildID.String(),
		r.ScopeAppID, r.ScopeOrgID,
		r.Result, r.LastError, r.RegisteredAt, r.ResumedAt,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return callout.ErrContinuationExists
		}
		return fmt.Errorf("callout/postgres: register continuation: %w", err)
	}
	return nil
}

// GetContinuation retrieves a record by token.
func (s *Store) GetContinuation(ctx context.Context, token id.ContinuationID) (*continuation.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, handler, payload, calls, state, chain_depth, max_chain,
			deadline, parent_id, child_id, scope_app_id, scope_org_id,
			result, last_error, registered_at, resumed_at, created_at, updated_at
		FROM callout_continuations
		WHERE id = $1`,
		token.String(),
	)

	r, err := scanRecord(row)
	if err != nil {
		if isNoRows(err) {
			return nil, callout.ErrContinuationNotFound
		}
		return nil, fmt.Errorf("callout/postgres: get continuation: %w", err)
	}
	return r, nil
}

// UpdateContinuation persists changes to an existing record.
func (s *Store) UpdateContinuation(ctx context.Context, r *continuation.Record) error {
	callsJSON, err := json.Marshal(r.Calls)
	if err != nil {
		return fmt.Errorf("callout/postgres: marshal calls: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE callout_continuations SET
			handler = $2, payload = $3, calls = $4, state = $5,
			chain_depth = $6, max_chain = $7, deadline = $8,
			parent_id = $9, child_id = $10, scope_app_id = $11,
			scope_org_id = $12, result = $13, last_error = $14,
			registered_at = $15, resumed_at = $16,
			updated_at = NOW()
		WHERE id = $1`,
		r.ID.String(), r.Handler, r.Payload, callsJSON, string(r.State),
		r.ChainDepth, r.MaxChain, r.Deadline,
		r.ParentID.String(), r.ChildID.String(), r.ScopeAppID,
		r.ScopeOrgID, r.Result, r.LastError,
		r.RegisteredAt, r.ResumedAt,
	)
	if err != nil {
		return fmt.Errorf("callout/postgres: update continuation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return callout.ErrContinuationNotFound
	}
	return nil
}

// DeleteContinuation removes a record by token.
func (s *Store) DeleteContinuation(ctx context.Context, token id.ContinuationID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM callout_continuations WHERE id = $1`, token.String())
	if err != nil {
		return fmt.Errorf("callout/postgres: delete continuation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return callout.ErrContinuationNotFound
	}
	return nil
}

// ListContinuationsByState returns records matching the given state.
func (s *Store) ListContinuationsByState(ctx context.Context, state continuation.State, opts continuation.ListOpts) ([]*continuation.Record, error) {
	query := `
		SELECT
			id, handler, payload, calls, state, chain_depth, max_chain,
			deadline, parent_id, child_id, scope_app_id, scope_org_id,
			result, last_error, registered_at, resumed_at, created_at, updated_at
		FROM callout_continuations
		WHERE state = $1`
	args := []interface{}{string(state)}
	argIdx := 2

	if opts.Handler != "" {
		query += fmt.Sprintf(" AND handler = $%d", argIdx)
		args = append(args, opts.Handler)
		argIdx++
	}

	query += " ORDER BY registered_at ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("callout/postgres: list continuations by state: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ExpiredContinuations returns suspended records whose deadline is at
// or before the given time.
func (s *Store) ExpiredContinuations(ctx context.Context, now time.Time) ([]*continuation.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			id, handler, payload, calls, state, chain_depth, max_chain,
			deadline, parent_id, child_id, scope_app_id, scope_org_id,
			result, last_error, registered_at, resumed_at, created_at, updated_at
		FROM callout_continuations
		WHERE state IN ('registered', 'pending')
		  AND deadline <= $1
		ORDER BY deadline ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("callout/postgres: expired continuations: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// CountContinuations returns the number of records in the given state.
// An empty state counts everything.
func (s *Store) CountContinuations(ctx context.Context, state continuation.State) (int64, error) {
	var (
		count int64
		err   error
	)
	if state == "" {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM callout_continuations`).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM callout_continuations WHERE state = $1`,
			string(state)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("callout/postgres: count continuations: %w", err)
	}
	return count, nil
}

// scanRecord scans a single continuation row.
func scanRecord(row pgx.Row) (*continuation.Record, error) {
	var (
		r         continuation.Record
		idStr     string
		parentStr string
		childStr  string
		stateStr  string
		callsJSON []byte
	)
	err := row.Scan(
		&idStr, &r.Handler, &r.Payload, &callsJSON, &stateStr,
		&r.ChainDepth, &r.MaxChain,
		&r.Deadline, &parentStr, &childStr, &r.ScopeAppID, &r.ScopeOrgID,
		&r.Result, &r.LastError, &r.RegisteredAt, &r.ResumedAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseContinuationID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("callout/postgres: parse continuation id %q: %w", idStr, parseErr)
	}
	r.ID = parsedID
	r.State = continuation.State(stateStr)

	if parentStr != "" {
		parent, pErr := id.ParseContinuationID(parentStr)
		if pErr != nil {
			return nil, fmt.Errorf("callout/postgres: parse parent id %q: %w", parentStr, pErr)
		}
		r.ParentID = parent
	}
	if childStr != "" {
		child, cErr := id.ParseContinuationID(childStr)
		if cErr != nil {
			return nil, fmt.Errorf("callout/postgres: parse child id %q: %w", childStr, cErr)
		}
		r.ChildID = child
	}

	r.Calls = []*call.PendingCall{}
	if len(callsJSON) > 0 {
		if uErr := json.Unmarshal(callsJSON, &r.Calls); uErr != nil {
			return nil, fmt.Errorf("callout/postgres: unmarshal calls: %w", uErr)
		}
	}

	return &r, nil
}

// collectRecords scans all rows into records.
func collectRecords(rows pgx.Rows) ([]*continuation.Record, error) {
	var records []*continuation.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("callout/postgres: scan continuation row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("callout/postgres: iterate continuation rows: %w", err)
	}
	return records, nil
}

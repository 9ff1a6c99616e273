package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/archive"
	"github.com/alcabon/callout/call"
	"github.com/alcabon/callout/id"
)

// PushArchive adds a failed continuation entry to the archive.
func (s *Store) PushArchive(ctx context.Context, entry *archive.Entry) error {
	callsJSON, err := json.Marshal(entry.Calls)
	if err != nil {
		return fmt.Errorf("callout/postgres: marshal archive calls: %w", err)
	}
	outcomesJSON, err := json.Marshal(entry.Outcomes)
	if err != nil {
		return fmt.Errorf("callout/postgres: marshal archive outcomes: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO callout_archive (
			id, continuation_id, handler, payload, calls, outcomes, error,
			chain_depth, max_chain, scope_app_id, scope_org_id,
			failed_at, replayed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		entry.ID.String(), entry.ContinuationID.String(), entry.Handler,
		entry.Payload, callsJSON, outcomesJSON, entry.Error,
		entry.ChainDepth, entry.MaxChain, entry.ScopeAppID, entry.ScopeOrgID,
		entry.FailedAt, entry.ReplayedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("callout/postgres: push archive: %w", err)
	}
	return nil
}

// ListArchive returns archive entries matching the given options.
func (s *Store) ListArchive(ctx context.Context, opts archive.ListOpts) ([]*archive.Entry, error) {
	query := `
		SELECT
			id, continuation_id, handler, payload, calls, outcomes, error,
			chain_depth, max_chain, scope_app_id, scope_org_id,
			failed_at, replayed_at, created_at
		FROM callout_archive
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.Handler != "" {
		query += fmt.Sprintf(" AND handler = $%d", argIdx)
		args = append(args, opts.Handler)
		argIdx++
	}

	query += " ORDER BY failed_at ASC"

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
		return nil, fmt.Errorf("callout/postgres: list archive: %w", err)
	}
	defer rows.Close()

	var entries []*archive.Entry
	for rows.Next() {
		e, scanErr := scanArchive(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("callout/postgres: scan archive row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("callout/postgres: iterate archive rows: %w", err)
	}
	return entries, nil
}

// GetArchive retrieves an archive entry by ID.
func (s *Store) GetArchive(ctx context.Context, entryID id.ArchiveID) (*archive.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, continuation_id, handler, payload, calls, outcomes, error,
			chain_depth, max_chain, scope_app_id, scope_org_id,
			failed_at, replayed_at, created_at
		FROM callout_archive
		WHERE id = $1`,
		entryID.String(),
	)

	e, err := scanArchive(row)
	if err != nil {
		if isNoRows(err) {
			return nil, callout.ErrArchiveNotFound
		}
		return nil, fmt.Errorf("callout/postgres: get archive: %w", err)
	}
	return e, nil
}

// ReplayArchive marks an archive entry as replayed.
func (s *Store) ReplayArchive(ctx context.Context, entryID id.ArchiveID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE callout_archive SET replayed_at = NOW() WHERE id = $1`,
		entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("callout/postgres: replay archive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return callout.ErrArchiveNotFound
	}
	return nil
}

// PurgeArchive removes entries with FailedAt before the given time.
// Returns the number of entries removed.
func (s *Store) PurgeArchive(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM callout_archive WHERE failed_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("callout/postgres: purge archive: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountArchive returns the total number of entries in the archive.
func (s *Store) CountArchive(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM callout_archive`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("callout/postgres: count archive: %w", err)
	}
	return count, nil
}

// scanArchive scans a single archive entry row.
func scanArchive(row pgx.Row) (*archive.Entry, error) {
	var (
		e            archive.Entry
		idStr        string
		contStr      string
		callsJSON    []byte
		outcomesJSON []byte
	)
	err := row.Scan(
		&idStr, &contStr, &e.Handler, &e.Payload, &callsJSON, &outcomesJSON, &e.Error,
		&e.ChainDepth, &e.MaxChain, &e.ScopeAppID, &e.ScopeOrgID,
		&e.FailedAt, &e.ReplayedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseArchiveID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("callout/postgres: parse archive id %q: %w", idStr, parseErr)
	}
	e.ID = parsedID

	parsedCont, contErr := id.ParseContinuationID(contStr)
	if contErr != nil {
		return nil, fmt.Errorf("callout/postgres: parse continuation id %q: %w", contStr, contErr)
	}
	e.ContinuationID = parsedCont

	e.Calls = []call.Descriptor{}
	if len(callsJSON) > 0 {
		if uErr := json.Unmarshal(callsJSON, &e.Calls); uErr != nil {
			return nil, fmt.Errorf("callout/postgres: unmarshal archive calls: %w", uErr)
		}
	}
	e.Outcomes = []call.Outcome{}
	if len(outcomesJSON) > 0 {
		if uErr := json.Unmarshal(outcomesJSON, &e.Outcomes); uErr != nil {
			return nil, fmt.Errorf("callout/postgres: unmarshal archive outcomes: %w", uErr)
		}
	}

	return &e, nil
}

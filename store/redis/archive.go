package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alcabon/callout"
	"github.com/alcabon/callout/archive"
	"github.com/alcabon/callout/id"
)

// PushArchive adds a failed continuation entry to the archive.
func (s *Store) PushArchive(ctx context.Context, entry *archive.Entry) error {
	eID := entry.ID.String()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("callout/redis: marshal archive entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, archiveKey(eID), data, 0)
	pipe.SAdd(ctx, archiveIDsKey, eID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("callout/redis: push archive: %w", err)
	}
	return nil
}

// ListArchive returns archive entries matching the given options.
func (s *Store) ListArchive(ctx context.Context, opts archive.ListOpts) ([]*archive.Entry, error) {
	ids, err := s.client.SMembers(ctx, archiveIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("callout/redis: list archive: %w", err)
	}

	entries := make([]*archive.Entry, 0, len(ids))
	for _, eID := range ids {
		e, getErr := s.getArchiveByKey(ctx, archiveKey(eID))
		if getErr != nil {
			continue
		}
		if opts.Handler != "" && e.Handler != opts.Handler {
			continue
		}
		entries = append(entries, e)
	}

	if opts.Offset > 0 && opts.Offset < len(entries) {
		entries = entries[opts.Offset:]
	} else if opts.Offset >= len(entries) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetArchive retrieves an archive entry by ID.
func (s *Store) GetArchive(ctx context.Context, entryID id.ArchiveID) (*archive.Entry, error) {
	return s.getArchiveByKey(ctx, archiveKey(entryID.String()))
}

// ReplayArchive marks an archive entry as replayed.
func (s *Store) ReplayArchive(ctx context.Context, entryID id.ArchiveID) error {
	e, err := s.GetArchive(ctx, entryID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	e.ReplayedAt = &now

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("callout/redis: marshal archive entry: %w", err)
	}
	if err := s.client.Set(ctx, archiveKey(entryID.String()), data, 0).Err(); err != nil {
		return fmt.Errorf("callout/redis: replay archive: %w", err)
	}
	return nil
}

// PurgeArchive removes entries with FailedAt before the given time.
func (s *Store) PurgeArchive(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.SMembers(ctx, archiveIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("callout/redis: purge archive smembers: %w", err)
	}

	var purged int64
	for _, eID := range ids {
		e, getErr := s.getArchiveByKey(ctx, archiveKey(eID))
		if getErr != nil {
			continue
		}
		if e.FailedAt.Before(before) {
			pipe := s.client.TxPipeline()
			pipe.Del(ctx, archiveKey(eID))
			pipe.SRem(ctx, archiveIDsKey, eID)
			if _, pErr := pipe.Exec(ctx); pErr != nil {
				return purged, fmt.Errorf("callout/redis: purge archive del: %w", pErr)
			}
			purged++
		}
	}
	return purged, nil
}

// CountArchive returns the total number of entries in the archive.
func (s *Store) CountArchive(ctx context.Context) (int64, error) {
	count, err := s.client.SCard(ctx, archiveIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("callout/redis: count archive: %w", err)
	}
	return count, nil
}

// ── helpers ──

func (s *Store) getArchiveByKey(ctx context.Context, key string) (*archive.Entry, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, callout.ErrArchiveNotFound
		}
		return nil, fmt.Errorf("callout/redis: get archive: %w", err)
	}

	var e archive.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("callout/redis: unmarshal archive entry: %w", err)
	}
	return &e, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"igarchive/pkg/accounts"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/mediacache"
	"igarchive/pkg/models"
)

// MediaResolver produces a local path for a media URL, or ok=false when the
// media could not be cached.
type MediaResolver interface {
	Resolve(ctx context.Context, req mediacache.Request) (string, bool)
}

// Filter narrows Count
type Filter struct {
	Category      models.Category
	HasLocalMedia *bool
	// Since keeps records captured strictly after it; zero means no bound
	Since time.Time
}

// ListOptions controls List paging
type ListOptions struct {
	Category models.Category
	Since    time.Time
	Limit    int
	Offset   int
}

// where builds the WHERE clause shared by Count and List
func (f Filter) where(account string) (string, []interface{}) {
	clauses := []string{"account = ?"}
	args := []interface{}{account}

	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(f.Category))
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "captured_at > ?")
		args = append(args, formatTime(f.Since))
	}
	if f.HasLocalMedia != nil {
		if *f.HasLocalMedia {
			clauses = append(clauses, "local_media_path IS NOT NULL AND local_media_path != ''")
		} else {
			clauses = append(clauses, "(local_media_path IS NULL OR local_media_path = '')")
		}
	}
	return strings.Join(clauses, " AND "), args
}

const recordColumns = `id, category, media_url, description, captured_at, is_video, local_media_path, account`

// Upsert stores a candidate for the partition's account unless a record with
// the same media URL already exists. A duplicate whose local media is missing
// is repaired in place; it is still reported as skipped_duplicate.
//
// Uniqueness relies on this lookup-before-insert running from a single writer.
func (s *Store) Upsert(ctx context.Context, p accounts.Partition, c models.Candidate, media MediaResolver) (models.UpsertResult, error) {
	if c.MediaURL == "" {
		return models.UpsertResult{}, errs.ErrEmptyMediaURL
	}
	if c.Category != models.CategoryPost && c.Category != models.CategoryReel {
		return models.UpsertResult{}, fmt.Errorf("%q: %w", c.Category, errs.ErrUnknownCategory)
	}

	existing, err := s.FindByURL(ctx, p.ID, c.MediaURL)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.UpsertResult{}, err
	}

	if existing != nil {
		res := models.UpsertResult{Outcome: models.OutcomeSkippedDuplicate, RecordID: existing.ID}
		if existing.HasLocalMedia() && mediacache.Exists(*existing.LocalMediaPath) {
			return res, nil
		}

		// Backfill uses the stored category so the file name stays stable
		// across observations from different pages.
		path, ok := media.Resolve(ctx, mediacache.Request{
			MediaURL:  existing.MediaURL,
			Category:  existing.Category,
			RecordID:  existing.ID,
			Partition: p,
		})
		if !ok {
			return res, nil
		}
		if err := s.SetLocalMediaPath(ctx, p.ID, existing.ID, path); err != nil {
			return res, err
		}
		res.Backfilled = true
		s.log.DebugWithFields("Backfilled local media", map[string]interface{}{
			"account": p.ID,
			"id":      existing.ID,
			"url":     logger.URLPrefix(c.MediaURL),
		})
		return res, nil
	}

	var local *string
	if path, ok := media.Resolve(ctx, mediacache.Request{
		MediaURL:  c.MediaURL,
		Category:  c.Category,
		Partition: p,
	}); ok {
		local = &path
	}

	id, err := s.insert(ctx, p.ID, c, local)
	if err != nil {
		return models.UpsertResult{}, err
	}
	return models.UpsertResult{Outcome: models.OutcomeAdded, RecordID: id}, nil
}

func (s *Store) insert(ctx context.Context, account string, c models.Candidate, local *string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (category, media_url, description, captured_at, is_video, local_media_path, account)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(c.Category), c.MediaURL, c.Description, formatTime(s.now()), c.IsVideo, local, account,
	)
	if err != nil {
		return 0, errs.Storage(err, "insert record")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Storage(err, "read inserted id")
	}
	return id, nil
}

// FindByURL returns the record with the given media URL in account. It
// returns sql.ErrNoRows when there is none.
func (s *Store) FindByURL(ctx context.Context, account, mediaURL string) (*models.ContentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE account = ? AND media_url = ? ORDER BY id LIMIT 1`,
		account, mediaURL,
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, errs.Storage(err, "find record")
	}
	return r, nil
}

// SetLocalMediaPath records where a record's media is cached
func (s *Store) SetLocalMediaPath(ctx context.Context, account string, id int64, path string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET local_media_path = ? WHERE id = ? AND account = ?`, path, id, account)
	if err != nil {
		return errs.Storage(err, "update local media path")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Storage(err, "update local media path")
	}
	if n == 0 {
		return errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("record %d not found", id))
	}
	return nil
}

// Count returns the number of records in account matching f
func (s *Store) Count(ctx context.Context, account string, f Filter) (int, error) {
	where, args := f.where(account)

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE "+where, args...,
	).Scan(&n)
	if err != nil {
		return 0, errs.Storage(err, "count records")
	}
	return n, nil
}

// Latest returns the most recent captured_at in account
func (s *Store) Latest(ctx context.Context, account string) (time.Time, bool, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(captured_at) FROM records WHERE account = ?`, account,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, errs.Storage(err, "query latest record")
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	t, err := parseTime(latest.String)
	if err != nil {
		return time.Time{}, false, errs.Storage(err, "query latest record")
	}
	return t, true, nil
}

// Stats summarises account
func (s *Store) Stats(ctx context.Context, account string) (models.Stats, error) {
	st := models.Stats{Account: account}
	withMedia := true

	counts := []struct {
		dst *int
		f   Filter
	}{
		{&st.Total, Filter{}},
		{&st.Posts, Filter{Category: models.CategoryPost}},
		{&st.Reels, Filter{Category: models.CategoryReel}},
		{&st.LocalMedia, Filter{HasLocalMedia: &withMedia}},
	}
	for _, c := range counts {
		n, err := s.Count(ctx, account, c.f)
		if err != nil {
			return models.Stats{}, err
		}
		*c.dst = n
	}

	latest, ok, err := s.Latest(ctx, account)
	if err != nil {
		return models.Stats{}, err
	}
	if ok {
		st.LastUpdate = &latest
	}
	return st, nil
}

// List returns records in account, newest first
func (s *Store) List(ctx context.Context, account string, opts ListOptions) ([]models.ContentRecord, error) {
	where, args := Filter{Category: opts.Category, Since: opts.Since}.where(account)
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + ` ORDER BY captured_at DESC, id DESC`

	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	} else if opts.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage(err, "list records")
	}
	defer rows.Close()

	records := []models.ContentRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errs.Storage(err, "scan record")
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "list records")
	}
	return records, nil
}

// All returns every record in account, newest first
func (s *Store) All(ctx context.Context, account string) ([]models.ContentRecord, error) {
	return s.List(ctx, account, ListOptions{})
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(sc scanner) (*models.ContentRecord, error) {
	var (
		r          models.ContentRecord
		category   string
		capturedAt string
		local      sql.NullString
	)
	if err := sc.Scan(&r.ID, &category, &r.MediaURL, &r.Description, &capturedAt, &r.IsVideo, &local, &r.Account); err != nil {
		return nil, err
	}
	r.Category = models.Category(category)

	t, err := parseTime(capturedAt)
	if err != nil {
		return nil, err
	}
	r.CapturedAt = t

	if local.Valid {
		path := local.String
		r.LocalMediaPath = &path
	}
	return &r, nil
}

package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteIndex is a durable BucketIndex backed by two tables covering the
// listing surface StoreQuery reads.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (creating if necessary) a SQLite database at dsn and
// applies the schema.
func NewSQLiteIndex(dsn string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: opening sqlite database: %w", err)
	}
	s := &SQLiteIndex{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteIndex) initSchema() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS object_versions (
			bucket           TEXT NOT NULL,
			key              TEXT NOT NULL,
			version_id       TEXT NOT NULL,
			seq              INTEGER NOT NULL,
			is_current       INTEGER NOT NULL DEFAULT 0,
			is_delete_marker INTEGER NOT NULL DEFAULT 0,
			size             INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (bucket, key, version_id)
		);
		CREATE INDEX IF NOT EXISTS idx_object_versions_bucket_key_seq
			ON object_versions(bucket, key, seq);

		CREATE TABLE IF NOT EXISTS multipart_uploads (
			bucket    TEXT NOT NULL,
			key       TEXT NOT NULL,
			upload_id TEXT NOT NULL,
			PRIMARY KEY (bucket, key, upload_id)
		);
		CREATE INDEX IF NOT EXISTS idx_multipart_uploads_bucket_key
			ON multipart_uploads(bucket, key);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// PutObjectVersion seeds one object version, demoting any existing current
// version for the same key. Fixture helper, not part of BucketIndex.
func (s *SQLiteIndex) PutObjectVersion(ctx context.Context, bucket, key, versionID string, isDeleteMarker bool, size int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var nextSeq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM object_versions WHERE bucket = ? AND key = ?`, bucket, key)
	if err := row.Scan(&nextSeq); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE object_versions SET is_current = 0 WHERE bucket = ? AND key = ?`, bucket, key); err != nil {
		return err
	}
	deleteFlag := 0
	if isDeleteMarker {
		deleteFlag = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO object_versions (bucket, key, version_id, seq, is_current, is_delete_marker, size)
		VALUES (?, ?, ?, ?, 1, ?, ?)
	`, bucket, key, versionID, nextSeq, deleteFlag, size); err != nil {
		return err
	}
	return tx.Commit()
}

// PutMultipartUpload seeds one in-progress multipart upload.
func (s *SQLiteIndex) PutMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO multipart_uploads (bucket, key, upload_id) VALUES (?, ?, ?)
	`, bucket, key, uploadID)
	return err
}

func (s *SQLiteIndex) ListObjectVersions(ctx context.Context, bucket string, opts VersionListOptions) (*VersionPage, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 100
	}

	query := `
		SELECT key, version_id, is_current, is_delete_marker, size
		FROM object_versions
		WHERE bucket = ? AND key LIKE ? AND key > ?
		ORDER BY key ASC, seq DESC
		LIMIT ?
	`
	likePrefix := likePattern(opts.Prefix)
	marker := opts.Marker

	rows, err := s.db.QueryContext(ctx, query, bucket, likePrefix, marker, maxKeys+1)
	if err != nil {
		return nil, fmt.Errorf("index: listing object versions: %w", err)
	}
	defer rows.Close()

	var entries []VersionEntry
	for rows.Next() {
		var e VersionEntry
		var isCurrent, isDelete int
		if err := rows.Scan(&e.Key, &e.VersionID, &isCurrent, &isDelete, &e.Size); err != nil {
			return nil, fmt.Errorf("index: scanning object version: %w", err)
		}
		e.IsCurrent = isCurrent != 0
		e.IsDeleteMarker = isDelete != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	isTruncated := len(entries) > maxKeys
	if isTruncated {
		entries = entries[:maxKeys]
	}
	page := &VersionPage{Entries: entries, IsTruncated: isTruncated}
	if isTruncated && len(entries) > 0 {
		page.NextMarker = entries[len(entries)-1].Key
	}
	return page, nil
}

func (s *SQLiteIndex) ListMultipartUploads(ctx context.Context, bucket string, opts UploadListOptions) (*UploadPage, error) {
	maxUploads := opts.MaxUploads
	if maxUploads <= 0 {
		maxUploads = 100
	}

	query := `
		SELECT key, upload_id
		FROM multipart_uploads
		WHERE bucket = ? AND key LIKE ?
		  AND (key > ? OR (key = ? AND upload_id > ?))
		ORDER BY key ASC, upload_id ASC
		LIMIT ?
	`
	likePrefix := likePattern(opts.Prefix)

	rows, err := s.db.QueryContext(ctx, query, bucket, likePrefix, opts.KeyMarker, opts.KeyMarker, opts.UploadIDMarker, maxUploads+1)
	if err != nil {
		return nil, fmt.Errorf("index: listing multipart uploads: %w", err)
	}
	defer rows.Close()

	var uploads []UploadEntry
	for rows.Next() {
		var u UploadEntry
		if err := rows.Scan(&u.Key, &u.UploadID); err != nil {
			return nil, fmt.Errorf("index: scanning multipart upload: %w", err)
		}
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	isTruncated := len(uploads) > maxUploads
	if isTruncated {
		uploads = uploads[:maxUploads]
	}
	page := &UploadPage{Uploads: uploads, IsTruncated: isTruncated}
	if isTruncated && len(uploads) > 0 {
		last := uploads[len(uploads)-1]
		page.NextKeyMarker = last.Key
		page.NextUploadIDMarker = last.UploadID
	}
	return page, nil
}

func likePattern(prefix string) string {
	if prefix == "" {
		return "%"
	}
	escaped := ""
	for _, r := range prefix {
		if r == '%' || r == '_' {
			escaped += "\\" + string(r)
		} else {
			escaped += string(r)
		}
	}
	return escaped + "%"
}

var _ BucketIndex = (*SQLiteIndex)(nil)

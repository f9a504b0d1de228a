package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/contactdiscovery/engine/internal/contact"
	"github.com/google/uuid"
)

var sqliteMigrations = []migration{
	{Version: 1, Name: "create_core_tables", SQL: `
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	method TEXT NOT NULL,
	value TEXT NOT NULL,
	confidence_score REAL NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	validated_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	metadata TEXT NOT NULL DEFAULT '{}',
	hash_signature TEXT NOT NULL,
	UNIQUE(listing_id, method, value)
);
CREATE INDEX IF NOT EXISTS idx_contacts_hash_signature ON contacts(hash_signature);
CREATE INDEX IF NOT EXISTS idx_contacts_status_confidence ON contacts(status, confidence_score DESC);
CREATE TABLE IF NOT EXISTS contact_validations (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	method TEXT NOT NULL,
	is_valid INTEGER NOT NULL,
	confidence REAL NOT NULL,
	errors TEXT NOT NULL DEFAULT '[]',
	warnings TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	validated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS contact_forms (
	id TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	action_url TEXT NOT NULL,
	http_method TEXT NOT NULL,
	fields TEXT NOT NULL DEFAULT '[]',
	required_fields TEXT NOT NULL DEFAULT '[]',
	csrf_token TEXT,
	complexity REAL NOT NULL,
	friendliness REAL NOT NULL,
	source_url TEXT NOT NULL,
	confidence_level TEXT NOT NULL,
	confidence_score REAL NOT NULL,
	observed_at TIMESTAMP NOT NULL,
	UNIQUE(listing_id, action_url)
);
`},
}

// SQLiteStore is the local/dev/test Store backend.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database file and applies
// migrations. Connections are serialized to one, matching SQLite's
// single-writer model.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyMigrations(ctx, db, sqliteMigrations, func() string { return time.Now().UTC().Format(time.RFC3339) },
		"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)"); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Upsert(ctx context.Context, listingID string, c contact.Contact) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var (
		id             string
		existingScore  float64
		existingMeta   []byte
		existingSource string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, confidence_score, metadata, source FROM contacts WHERE listing_id=? AND method=? AND value=?`,
		listingID, string(c.Method), c.Value).Scan(&id, &existingScore, &existingMeta, &existingSource)

	metaBytes, err2 := encodeMetadata(c.Metadata)
	if err2 != nil {
		return "", err2
	}
	hash := hashSignature(c.Method, c.Value, contact.ValueDomain(c.Method, c.Value))

	if err == sql.ErrNoRows {
		id = uuid.NewString()
		status := "unverified"
		var validatedAt *time.Time
		if c.VerificationStatus == contact.StatusVerified {
			status = "valid"
			t := time.Now()
			validatedAt = &t
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contacts (id, listing_id, method, value, confidence_score, source, status, validated_at, created_at, updated_at, metadata, hash_signature)
			VALUES (?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP,?,?)`,
			id, listingID, string(c.Method), c.Value, c.ConfidenceScore, c.ExtractionMethod, status, validatedAt, metaBytes, hash)
		if err != nil {
			return "", err
		}
		return id, tx.Commit()
	}
	if err != nil {
		return "", err
	}

	mergedScore := c.ConfidenceScore
	if existingScore > mergedScore {
		mergedScore = existingScore
	}
	source := existingSource
	if c.ExtractionMethod == "mailto_link" || c.ExtractionMethod == "standard_pattern" {
		source = c.ExtractionMethod
	}
	existing, err3 := decodeMetadata(existingMeta)
	if err3 != nil {
		existing = map[string]any{}
	}
	for k, v := range c.Metadata {
		if _, ok := existing[k]; !ok {
			existing[k] = v
		}
	}
	mergedMeta, err4 := encodeMetadata(existing)
	if err4 != nil {
		return "", err4
	}

	setStatus := ""
	if c.VerificationStatus == contact.StatusVerified {
		setStatus = ", status='valid', validated_at=CURRENT_TIMESTAMP"
	}
	query := fmt.Sprintf(`UPDATE contacts SET confidence_score=?, source=?, metadata=?, hash_signature=?, updated_at=CURRENT_TIMESTAMP%s WHERE id=?`, setStatus)
	if _, err := tx.ExecContext(ctx, query, mergedScore, source, mergedMeta, hash, id); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

func (s *SQLiteStore) InsertValidation(ctx context.Context, contactID string, v contact.ValidationRecord) error {
	errsJSON, _ := encodeStrings(v.Errors)
	warnJSON, _ := encodeStrings(v.Warnings)
	metaJSON, err := encodeMetadata(v.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contact_validations (id, contact_id, method, is_valid, confidence, errors, warnings, metadata, validated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), contactID, string(v.Method), v.IsValid, v.Confidence, errsJSON, warnJSON, metaJSON, v.ValidatedAt)
	return err
}

func (s *SQLiteStore) InsertForm(ctx context.Context, listingID string, f contact.ContactForm) error {
	fieldsJSON, _ := encodeStrings(f.Fields)
	requiredJSON, _ := encodeStrings(f.RequiredFields)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_forms (id, listing_id, action_url, http_method, fields, required_fields, csrf_token, complexity, friendliness, source_url, confidence_level, confidence_score, observed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (listing_id, action_url) DO UPDATE SET
			fields=excluded.fields, required_fields=excluded.required_fields, csrf_token=excluded.csrf_token,
			complexity=excluded.complexity, friendliness=excluded.friendliness,
			confidence_level=excluded.confidence_level, confidence_score=excluded.confidence_score, observed_at=excluded.observed_at`,
		uuid.NewString(), listingID, f.ActionURL, f.HTTPMethod, fieldsJSON, requiredJSON, f.CSRFToken, f.Complexity, f.Friendliness, f.SourceURL, string(f.ConfidenceLevel), f.ConfidenceScore, f.ObservedAt)
	return err
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]ContactRow, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, listing_id, method, value, confidence_score, source, status, validated_at, created_at, updated_at, metadata, hash_signature FROM contacts WHERE 1=1`)
	var args []any
	if q.ListingID != "" {
		sb.WriteString(" AND listing_id = ?")
		args = append(args, q.ListingID)
	}
	if q.Status != "" {
		sb.WriteString(" AND status = ?")
		args = append(args, q.Status)
	}
	if q.MinConfidence > 0 {
		sb.WriteString(" AND confidence_score >= ?")
		args = append(args, q.MinConfidence)
	}
	if !q.CreatedAfter.IsZero() {
		sb.WriteString(" AND created_at >= ?")
		args = append(args, q.CreatedAfter)
	}
	if !q.CreatedBefore.IsZero() {
		sb.WriteString(" AND created_at <= ?")
		args = append(args, q.CreatedBefore)
	}
	if q.TextMatch != "" {
		sb.WriteString(" AND (value LIKE ? OR source LIKE ?)")
		args = append(args, "%"+q.TextMatch+"%", "%"+q.TextMatch+"%")
	}
	sb.WriteString(" ORDER BY confidence_score DESC, created_at DESC")
	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", q.Offset))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContactRows(rows)
}

func (s *SQLiteStore) DeduplicateByHash(ctx context.Context) ([]Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_id, method, value, confidence_score, source, status, validated_at, created_at, updated_at, metadata, hash_signature
		FROM contacts WHERE hash_signature IN (SELECT hash_signature FROM contacts GROUP BY hash_signature HAVING COUNT(*) > 1)
		ORDER BY hash_signature`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	all, err := scanContactRows(rows)
	if err != nil {
		return nil, err
	}
	return clusterByHash(all), nil
}

func (s *SQLiteStore) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if _, err := tx.ExecContext(ctx, `DELETE FROM contact_validations WHERE contact_id IN (SELECT id FROM contacts WHERE created_at < ?)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

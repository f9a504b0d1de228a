package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/contactdiscovery/engine/internal/contact"
	"github.com/google/uuid"
)

var postgresMigrations = []migration{
	{Version: 1, Name: "create_core_tables", SQL: `
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	method TEXT NOT NULL,
	value TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	validated_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	metadata JSONB NOT NULL DEFAULT '{}',
	hash_signature TEXT NOT NULL,
	UNIQUE(listing_id, method, value)
);
CREATE INDEX IF NOT EXISTS idx_contacts_hash_signature ON contacts(hash_signature);
CREATE INDEX IF NOT EXISTS idx_contacts_status_confidence ON contacts(status, confidence_score DESC);
CREATE TABLE IF NOT EXISTS contact_validations (
	id TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	method TEXT NOT NULL,
	is_valid BOOLEAN NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	errors JSONB NOT NULL DEFAULT '[]',
	warnings JSONB NOT NULL DEFAULT '[]',
	metadata JSONB NOT NULL DEFAULT '{}',
	validated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS contact_forms (
	id TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	action_url TEXT NOT NULL,
	http_method TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '[]',
	required_fields JSONB NOT NULL DEFAULT '[]',
	csrf_token TEXT,
	complexity DOUBLE PRECISION NOT NULL,
	friendliness DOUBLE PRECISION NOT NULL,
	source_url TEXT NOT NULL,
	confidence_level TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	UNIQUE(listing_id, action_url)
);
`},
}

// PostgresStore is the production Store backend.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, tunes the pool, and applies migrations, mirroring
// the teacher's DSN-building and pool-tuning pattern.
func OpenPostgres(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 20
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applyMigrations(ctx, db, postgresMigrations, func() string { return time.Now().UTC().Format(time.RFC3339) },
		"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES ($1, $2, $3, $4)"); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// Upsert implements spec.md §4.7's write path.
func (s *PostgresStore) Upsert(ctx context.Context, listingID string, c contact.Contact) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var (
		id              string
		existingScore   float64
		existingMeta    []byte
		existingSource  string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, confidence_score, metadata, source FROM contacts WHERE listing_id=$1 AND method=$2 AND value=$3`,
		listingID, string(c.Method), c.Value).Scan(&id, &existingScore, &existingMeta, &existingSource)

	metaBytes, err2 := encodeMetadata(c.Metadata)
	if err2 != nil {
		return "", err2
	}
	domain := contactDomain(c)
	hash := hashSignature(c.Method, c.Value, domain)

	if err == sql.ErrNoRows {
		id = uuid.NewString()
		status := "unverified"
		if c.VerificationStatus == contact.StatusVerified {
			status = "valid"
		}
		var validatedAt *time.Time
		if c.VerificationStatus == contact.StatusVerified {
			t := time.Now()
			validatedAt = &t
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contacts (id, listing_id, method, value, confidence_score, source, status, validated_at, created_at, updated_at, metadata, hash_signature)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now(),$9,$10)`,
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
		setStatus = ", status='valid', validated_at=now()"
	}
	args := []any{mergedScore, source, mergedMeta, hash, id}
	query := fmt.Sprintf(`UPDATE contacts SET confidence_score=$1, source=$2, metadata=$3, hash_signature=$4, updated_at=now()%s WHERE id=$5`, setStatus)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

func (s *PostgresStore) InsertValidation(ctx context.Context, contactID string, v contact.ValidationRecord) error {
	errsJSON, _ := encodeStrings(v.Errors)
	warnJSON, _ := encodeStrings(v.Warnings)
	metaJSON, err := encodeMetadata(v.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contact_validations (id, contact_id, method, is_valid, confidence, errors, warnings, metadata, validated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		uuid.NewString(), contactID, string(v.Method), v.IsValid, v.Confidence, errsJSON, warnJSON, metaJSON, v.ValidatedAt)
	return err
}

func (s *PostgresStore) InsertForm(ctx context.Context, listingID string, f contact.ContactForm) error {
	fieldsJSON, _ := encodeStrings(f.Fields)
	requiredJSON, _ := encodeStrings(f.RequiredFields)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_forms (id, listing_id, action_url, http_method, fields, required_fields, csrf_token, complexity, friendliness, source_url, confidence_level, confidence_score, observed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (listing_id, action_url) DO UPDATE SET
			fields=EXCLUDED.fields, required_fields=EXCLUDED.required_fields, csrf_token=EXCLUDED.csrf_token,
			complexity=EXCLUDED.complexity, friendliness=EXCLUDED.friendliness,
			confidence_level=EXCLUDED.confidence_level, confidence_score=EXCLUDED.confidence_score, observed_at=EXCLUDED.observed_at`,
		uuid.NewString(), listingID, f.ActionURL, f.HTTPMethod, fieldsJSON, requiredJSON, f.CSRFToken, f.Complexity, f.Friendliness, f.SourceURL, string(f.ConfidenceLevel), f.ConfidenceScore, f.ObservedAt)
	return err
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]ContactRow, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, listing_id, method, value, confidence_score, source, status, validated_at, created_at, updated_at, metadata, hash_signature FROM contacts WHERE 1=1`)
	var args []any
	idx := 1
	add := func(clause string, val any) {
		sb.WriteString(fmt.Sprintf(" AND %s $%d", clause, idx))
		args = append(args, val)
		idx++
	}
	if q.ListingID != "" {
		add("listing_id =", q.ListingID)
	}
	if q.Status != "" {
		add("status =", q.Status)
	}
	if q.MinConfidence > 0 {
		add("confidence_score >=", q.MinConfidence)
	}
	if !q.CreatedAfter.IsZero() {
		add("created_at >=", q.CreatedAfter)
	}
	if !q.CreatedBefore.IsZero() {
		add("created_at <=", q.CreatedBefore)
	}
	if q.TextMatch != "" {
		sb.WriteString(fmt.Sprintf(" AND (value ILIKE $%d OR source ILIKE $%d)", idx, idx))
		args = append(args, "%"+q.TextMatch+"%")
		idx++
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

func (s *PostgresStore) DeduplicateByHash(ctx context.Context) ([]Cluster, error) {
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

func (s *PostgresStore) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	cutoff := fmt.Sprintf("now() - interval '%d days'", retentionDays)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM contact_validations WHERE contact_id IN (SELECT id FROM contacts WHERE created_at < %s)`, cutoff)); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM contacts WHERE created_at < %s`, cutoff))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func contactDomain(c contact.Contact) string {
	return contact.ValueDomain(c.Method, c.Value)
}

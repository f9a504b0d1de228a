package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactdiscovery/engine/internal/contact"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.db.ExecContext(context.Background(),
		`INSERT INTO listings (id, url) VALUES (?, ?)`, "listing-1", "https://acme.de")
	require.NoError(t, err)
	return store
}

func TestSQLiteUpsertInsertsNewContact(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	c := contact.Contact{
		Method: contact.MethodEmail, Value: "info@acme.de", ConfidenceScore: 0.8,
		ExtractionMethod: "mailto_link", VerificationStatus: contact.StatusUnverified,
		Metadata: map[string]any{"page": "kontakt"},
	}
	id, err := store.Upsert(ctx, "listing-1", c)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rows, err := store.Query(ctx, Query{ListingID: "listing-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "info@acme.de", rows[0].Value)
	assert.Equal(t, "kontakt", rows[0].Metadata["page"])
}

func TestSQLiteUpsertMonotonicConfidenceAndSourceOverwrite(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	low := contact.Contact{
		Method: contact.MethodEmail, Value: "info@acme.de", ConfidenceScore: 0.3,
		ExtractionMethod: "ocr", Metadata: map[string]any{"first": "a"},
	}
	_, err := store.Upsert(ctx, "listing-1", low)
	require.NoError(t, err)

	high := contact.Contact{
		Method: contact.MethodEmail, Value: "info@acme.de", ConfidenceScore: 0.9,
		ExtractionMethod: "mailto_link", Metadata: map[string]any{"second": "b"},
	}
	_, err = store.Upsert(ctx, "listing-1", high)
	require.NoError(t, err)

	rows, err := store.Query(ctx, Query{ListingID: "listing-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.9, rows[0].ConfidenceScore)
	assert.Equal(t, "mailto_link", rows[0].Source)
	assert.Equal(t, "a", rows[0].Metadata["first"], "existing metadata keys must be preserved")
	assert.Equal(t, "b", rows[0].Metadata["second"])
}

func TestSQLiteDeduplicateByHashGroupsAcrossListings(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `INSERT INTO listings (id, url) VALUES (?, ?)`, "listing-2", "https://acme.de/other")
	require.NoError(t, err)

	c := contact.Contact{Method: contact.MethodEmail, Value: "info@acme.de", ConfidenceScore: 0.5, ExtractionMethod: "standard_pattern"}
	_, err = store.Upsert(ctx, "listing-1", c)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "listing-2", c)
	require.NoError(t, err)

	clusters, err := store.DeduplicateByHash(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Contacts, 2)
}

func TestSQLiteCleanupRemovesOldRowsOnly(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	c := contact.Contact{Method: contact.MethodEmail, Value: "old@acme.de", ConfidenceScore: 0.5, ExtractionMethod: "standard_pattern"}
	id, err := store.Upsert(ctx, "listing-1", c)
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, `UPDATE contacts SET created_at = ? WHERE id = ?`, time.Now().AddDate(0, 0, -400), id)
	require.NoError(t, err)

	c2 := contact.Contact{Method: contact.MethodEmail, Value: "new@acme.de", ConfidenceScore: 0.5, ExtractionMethod: "standard_pattern"}
	_, err = store.Upsert(ctx, "listing-1", c2)
	require.NoError(t, err)

	removed, err := store.Cleanup(ctx, 365)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rows, err := store.Query(ctx, Query{ListingID: "listing-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new@acme.de", rows[0].Value)
}

func TestSQLiteInsertFormUpsertsByActionURL(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	f := contact.ContactForm{ActionURL: "https://acme.de/send", HTTPMethod: "post", Fields: []string{"email"}, ConfidenceLevel: contact.ConfidenceHigh, ConfidenceScore: 0.8}
	require.NoError(t, store.InsertForm(ctx, "listing-1", f))

	f.Fields = []string{"email", "message"}
	require.NoError(t, store.InsertForm(ctx, "listing-1", f))

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_forms WHERE listing_id = ?`, "listing-1").Scan(&count))
	assert.Equal(t, 1, count)
}

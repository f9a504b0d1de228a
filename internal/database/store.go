// Package database implements C7: the relational store behind discovered
// contacts, validations, and forms (spec.md §4.7, §6).
package database

import (
	"context"
	"time"

	"github.com/contactdiscovery/engine/internal/contact"
)

// ContactRow is a persisted contact row as read back from the store.
type ContactRow struct {
	ID               string
	ListingID        string
	Method           contact.Method
	Value            string
	ConfidenceScore  float64
	Source           string
	Status           string
	ValidatedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Metadata         map[string]any
	HashSignature    string
}

// Query filters the paginated read path (spec.md §4.7).
type Query struct {
	ListingID     string
	Status        string
	MinConfidence float64
	CreatedAfter  time.Time
	CreatedBefore time.Time
	TextMatch     string
	Limit         int
	Offset        int
}

// Cluster groups contacts sharing a hash_signature across listings, for
// offline dedup review (spec.md §4.7 "never silently deletes across listings").
type Cluster struct {
	HashSignature string
	Contacts      []ContactRow
}

// Store is the C7 contract, implemented by both the Postgres and SQLite
// backends.
type Store interface {
	// Upsert writes contact c for listingID per the monotonic-confidence
	// merge rules of spec.md §4.7, returning the row's id.
	Upsert(ctx context.Context, listingID string, c contact.Contact) (string, error)

	// InsertValidation always appends, never updates.
	InsertValidation(ctx context.Context, contactID string, v contact.ValidationRecord) error

	// InsertForm upserts a contact form observation by (listing_id, action_url).
	InsertForm(ctx context.Context, listingID string, f contact.ContactForm) error

	Query(ctx context.Context, q Query) ([]ContactRow, error)

	// DeduplicateByHash groups existing rows by hash_signature into
	// review clusters without deleting anything.
	DeduplicateByHash(ctx context.Context) ([]Cluster, error)

	// Cleanup deletes contacts older than retentionDays, cascading to
	// contact_validations first, and returns the number of contact rows removed.
	Cleanup(ctx context.Context, retentionDays int) (int64, error)

	Close() error
}

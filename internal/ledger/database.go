package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/expensomatic/internal/claim"
)

const (
	draftBucketName   = "drafts"
	receiptBucketName = "receipts"
)

// ErrNotFound is returned for unknown draft IDs
var ErrNotFound = errors.New("not found")

// DB records every claim draft and every receipt outcome so reruns can be
// audited
type DB interface {
	claim.Recorder

	// GetDraft retrieves a draft by ID
	GetDraft(id string) (*claim.Draft, error)

	// ListDrafts returns all drafts, oldest first
	ListDrafts() ([]*claim.Draft, error)

	// History returns every outcome recorded for a receipt name, oldest first;
	// empty when the name was never recorded
	History(name string) ([]claim.ReceiptOutcome, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB. Receipts are keyed by
// file name because that is all a rerun can match on.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(draftBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveDraft inserts or replaces a draft
func (b *BoltDB) SaveDraft(draft *claim.Draft) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucketName))
		data, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("marshaling draft: %w", err)
		}
		return bucket.Put([]byte(draft.ID), data)
	})
}

// GetDraft retrieves a draft by ID
func (b *BoltDB) GetDraft(id string) (*claim.Draft, error) {
	var draft *claim.Draft
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("draft %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &draft)
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// ListDrafts returns all drafts, oldest first
func (b *BoltDB) ListDrafts() ([]*claim.Draft, error) {
	drafts := make([]*claim.Draft, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var draft claim.Draft
			if err := json.Unmarshal(v, &draft); err != nil {
				return fmt.Errorf("unmarshaling draft: %w", err)
			}
			drafts = append(drafts, &draft)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
	})
	return drafts, nil
}

// RecordOutcome appends an outcome to the receipt's history
func (b *BoltDB) RecordOutcome(outcome claim.ReceiptOutcome) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		var history []claim.ReceiptOutcome
		if data := bucket.Get([]byte(outcome.Receipt)); data != nil {
			if err := json.Unmarshal(data, &history); err != nil {
				return fmt.Errorf("unmarshaling history of %s: %w", outcome.Receipt, err)
			}
		}
		history = append(history, outcome)
		data, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("marshaling history: %w", err)
		}
		return bucket.Put([]byte(outcome.Receipt), data)
	})
}

// History returns every outcome recorded for name, oldest first. A name
// the ledger has never seen has an empty history.
func (b *BoltDB) History(name string) ([]claim.ReceiptOutcome, error) {
	var history []claim.ReceiptOutcome
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data := bucket.Get([]byte(name))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &history); err != nil {
			return fmt.Errorf("unmarshaling history of %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

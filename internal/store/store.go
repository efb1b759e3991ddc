// Package store persists the quoting workflow through gorm. Derived tables
// (merged and selected quotes) are replaced one generation at a time: a new
// generation is written and made visible in the same transaction that drops
// the previous one.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/engine"
	"github.com/diewo77/quote-optimizer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) DB() *gorm.DB { return s.db }

// LoadSnapshot reads every ingested table in one transaction.
func (s *Store) LoadSnapshot(ctx context.Context) (*engine.Snapshot, error) {
	snap := &engine.Snapshot{}
	loads := []struct {
		table string
		order string
		dest  any
	}{
		{"client_requests", "id", &snap.Requests},
		{"suppliers", "id", &snap.Suppliers},
		{"rfq_sent", "id", &snap.RFQs},
		{"rfq_details", "id", &snap.Details},
		{"quotation_responses", "id", &snap.Quotations},
		{"quote_scores", "quotation_response_id", &snap.Scores},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range loads {
			if err := tx.Order(l.order).Find(l.dest).Error; err != nil {
				return &apperrors.PersistenceError{Op: "load", Table: l.table, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, asPersistence("load", "snapshot", err)
	}
	return snap, nil
}

// ReplaceMergedQuotes publishes rows as the new merged quote generation and
// returns its number.
func (s *Store) ReplaceMergedQuotes(ctx context.Context, runID string, rows []models.MergedQuote) (uint, error) {
	return replaceGeneration(ctx, s.db, models.MergedQuotesSnapshot, runID, s.now(), rows,
		func(r *models.MergedQuote, gen uint, run string) {
			r.ID, r.Generation, r.RunID = 0, gen, run
		})
}

// ReplaceSelectedQuotes publishes rows as the new selected quote generation.
func (s *Store) ReplaceSelectedQuotes(ctx context.Context, runID string, rows []models.SelectedQuote) (uint, error) {
	return replaceGeneration(ctx, s.db, models.SelectedQuotesSnapshot, runID, s.now(), rows,
		func(r *models.SelectedQuote, gen uint, run string) {
			r.ID, r.Generation, r.RunID = 0, gen, run
		})
}

func replaceGeneration[T any](ctx context.Context, db *gorm.DB, name, runID string, now time.Time, rows []T, stamp func(*T, uint, string)) (uint, error) {
	rows = append([]T(nil), rows...)
	var published uint

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// make sure the head row exists so the first publication also has
		// a row to lock
		seed := models.SnapshotHead{Name: name, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		var head models.SnapshotHead
		if err := lockHead(tx, name).Find(&head).Error; err != nil {
			return err
		}
		next := head.Generation + 1

		for i := range rows {
			stamp(&rows[i], next, runID)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return err
			}
		}

		head = models.SnapshotHead{Name: name, Generation: next, RunID: runID, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"generation", "run_id", "updated_at"}),
		}).Create(&head).Error; err != nil {
			return err
		}

		if err := tx.Where("generation <> ?", next).Delete(new(T)).Error; err != nil {
			return err
		}
		published = next
		return nil
	})
	if err != nil {
		return 0, &apperrors.PersistenceError{Op: "replace", Table: name, Err: err}
	}
	return published, nil
}

// lockHead selects the head row FOR UPDATE, so overlapping swaps of the same
// snapshot run one after the other. SQLite ignores the locking clause and
// serializes writers on its own.
func lockHead(tx *gorm.DB, name string) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		Limit(1)
}

// CurrentMergedQuotes returns the visible merged quote generation.
func (s *Store) CurrentMergedQuotes(ctx context.Context) ([]models.MergedQuote, error) {
	var rows []models.MergedQuote
	err := s.db.WithContext(ctx).
		Where("generation = (?)", s.headGeneration(models.MergedQuotesSnapshot)).
		Order("client_request_id, supplier_id, quotation_response_id").
		Find(&rows).Error
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "read", Table: models.MergedQuotesSnapshot, Err: err}
	}
	return rows, nil
}

// CurrentSelectedQuotes returns the visible selected quote generation.
func (s *Store) CurrentSelectedQuotes(ctx context.Context) ([]models.SelectedQuote, error) {
	var rows []models.SelectedQuote
	err := s.db.WithContext(ctx).
		Where("generation = (?)", s.headGeneration(models.SelectedQuotesSnapshot)).
		Order("client_request_id").
		Find(&rows).Error
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "read", Table: models.SelectedQuotesSnapshot, Err: err}
	}
	return rows, nil
}

// Head returns the snapshot pointer of a derived table, or ErrNotFound
// before its first publication.
func (s *Store) Head(ctx context.Context, name string) (*models.SnapshotHead, error) {
	var head models.SnapshotHead
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "read", Table: "snapshot_heads", Err: err}
	}
	return &head, nil
}

// CurrentSelectedScope scopes a query on selected_quotes to the visible generation.
func (s *Store) CurrentSelectedScope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("generation = (?)", s.headGeneration(models.SelectedQuotesSnapshot))
	}
}

func (s *Store) headGeneration(name string) *gorm.DB {
	return s.db.Model(&models.SnapshotHead{}).Select("generation").Where("name = ?", name)
}

func asPersistence(op, table string, err error) error {
	var pe *apperrors.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &apperrors.PersistenceError{Op: op, Table: table, Err: err}
}

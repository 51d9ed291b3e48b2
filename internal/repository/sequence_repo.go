package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campushelp/helpdesk-api/internal/models"
)

// SequenceRepository allocates the per-month ticket numbers behind keys of
// the form TKT-YYMM-NNN. Next holds a row lock on the bucket counter for the
// duration of the transaction, so concurrent callers serialise instead of
// racing a read-then-insert. The counter is seeded from the highest existing
// key in the bucket the first time a month is used.
type SequenceRepository interface {
	Next(ctx context.Context, bucket string) (int, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository constructs a repository backed by GORM.
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, bucket string) (int, error) {
	var next int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq models.TicketSequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("bucket = ?", bucket).
			First(&seq).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			seed, seedErr := r.currentMax(tx, bucket)
			if seedErr != nil {
				return seedErr
			}
			seq = models.TicketSequence{Bucket: bucket, Value: seed}
			if createErr := tx.Create(&seq).Error; createErr != nil {
				return createErr
			}
		case err != nil:
			return err
		}

		seq.Value++
		next = seq.Value
		return tx.Save(&seq).Error
	})
	if err != nil {
		return 0, err
	}

	return next, nil
}

// currentMax derives the starting counter from tickets that predate the
// counter table, by parsing the numeric tail of the highest key in the bucket.
func (r *sequenceRepository) currentMax(tx *gorm.DB, bucket string) (int, error) {
	prefix := fmt.Sprintf("TKT-%s-", bucket)

	// Longer keys first, so TKT-YYMM-1000 outranks the lexically larger
	// TKT-YYMM-999 once a bucket outgrows three digits.
	var ticket models.Ticket
	err := tx.Where("key LIKE ?", prefix+"%").
		Order("LENGTH(key) DESC, key DESC").
		First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var seq int
	if _, err := fmt.Sscanf(ticket.Key, "TKT-"+bucket+"-%d", &seq); err != nil {
		return 0, nil
	}
	return seq, nil
}

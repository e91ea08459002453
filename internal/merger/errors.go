package merger

import (
	"errors"
	"fmt"

	"github.com/JustJay7/docket-merger/internal/database"
	"gorm.io/gorm"
)

var (
	// ErrNotFound means no row matched at any lookup tier.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousMatch means several rows matched and nothing could narrow
	// them to one.
	ErrAmbiguousMatch = errors.New("ambiguous match")
	// ErrConflict is a unique constraint violation from a concurrent writer
	// that a re-read did not resolve.
	ErrConflict = errors.New("conflicting concurrent write")
	// ErrTransient is a lock wait, deadlock or serialization failure.
	ErrTransient = errors.New("transient store failure")
	// ErrValidation means the input or a constructed row failed integrity
	// rules.
	ErrValidation = errors.New("validation failed")
)

// classify maps a store error onto the merger's error kinds, keeping the
// original error in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAmbiguousMatch),
		errors.Is(err, ErrConflict), errors.Is(err, ErrTransient),
		errors.Is(err, ErrValidation):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case database.IsTransient(err):
		return fmt.Errorf("%w: %w", ErrTransient, err)
	case database.IsDuplicateKey(err):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}

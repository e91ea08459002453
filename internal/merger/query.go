package merger

import (
	"gorm.io/gorm"
)

const (
	oldestFirst = "created_at, id"
	newestFirst = "created_at DESC, id DESC"
)

// getOne returns the only row q matches. It fails with ErrNotFound or
// ErrAmbiguousMatch otherwise.
func getOne[T any](q *gorm.DB) (*T, error) {
	var rows []T
	if err := q.Limit(2).Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &rows[0], nil
	default:
		return nil, ErrAmbiguousMatch
	}
}

// firstBy returns the first row of q in the given order, or ErrNotFound.
func firstBy[T any](q *gorm.DB, order string) (*T, error) {
	var rows []T
	if err := q.Order(order).Limit(1).Find(&rows).Error; err != nil {
		return nil, classify(err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func earliest[T any](q *gorm.DB) (*T, error) { return firstBy[T](q, oldestFirst) }

func latest[T any](q *gorm.DB) (*T, error) { return firstBy[T](q, newestFirst) }

func ptr[T any](v T) *T { return &v }

// firstNonEmpty returns incoming unless it is blank.
func firstNonEmpty(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

func firstNonNil[T any](incoming, existing *T) *T {
	if incoming != nil {
		return incoming
	}
	return existing
}

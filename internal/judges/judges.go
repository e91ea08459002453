// Package judges resolves the free-text judge names found on dockets to rows
// in the judges table.
package judges

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JustJay7/docket-merger/internal/cache"
	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"gorm.io/gorm"
)

var (
	titleRe  = regexp.MustCompile(`(?i)\b(?:chief|senior|district|magistrate|bankruptcy|circuit|u\.?s\.?|judge|justice|hon\.?|honorable|the)\b`)
	suffixRe = regexp.MustCompile(`(?i)^(?:jr|sr|ii|iii|iv)\.?$`)
	punctRe  = regexp.MustCompile(`[^\p{L}\s'-]`)
)

// Finder looks judges up by name with a TTL cache in front of the database.
type Finder struct {
	db     *gorm.DB
	cache  cache.Cache[*uint]
	logger *logger.Logger
}

func NewFinder(db *gorm.DB, c cache.Cache[*uint], log *logger.Logger) *Finder {
	return &Finder{db: db, cache: c, logger: log}
}

// LastName extracts the surname from a docket judge string such as
// "Magistrate Judge Sallie Kim" or "Hon. John A. Smith, Jr.".
func LastName(name string) string {
	s := titleRe.ReplaceAllString(name, " ")
	s = strings.ReplaceAll(s, ",", " ")
	s = punctRe.ReplaceAllString(s, " ")
	fields := strings.Fields(s)
	for len(fields) > 0 && suffixRe.MatchString(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

// Lookup returns the id of the single judge of courtID whose surname matches
// name and who was serving on the given date. It returns nil when there is
// no match or more than one.
func (f *Finder) Lookup(ctx context.Context, name, courtID string, on *time.Time) (*uint, error) {
	last := LastName(name)
	if last == "" || courtID == "" {
		return nil, nil
	}

	dateKey := ""
	if on != nil {
		dateKey = on.Format("2006-01-02")
	}
	key := cache.GenerateKey("judge", courtID, last, dateKey)
	if id, ok := f.cache.Get(key); ok {
		return id, nil
	}

	q := f.db.WithContext(ctx).
		Model(&database.Judge{}).
		Where("court_id = ? AND LOWER(name_last) = ?", courtID, last)
	if on != nil {
		q = q.Where("(date_start IS NULL OR date_start <= ?) AND (date_end IS NULL OR date_end >= ?)", *on, *on)
	}

	var ids []uint
	if err := q.Limit(2).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("lookup judge %q in %s: %w", name, courtID, err)
	}

	var id *uint
	switch len(ids) {
	case 1:
		id = &ids[0]
	case 0:
		f.logger.Debug("No judge matched", "name", name, "court", courtID)
	default:
		f.logger.Debug("Judge name is ambiguous", "name", name, "court", courtID)
	}
	f.cache.Set(key, id)
	return id, nil
}

package merger

import (
	"strings"

	"github.com/JustJay7/docket-merger/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Object types for tagged rows.
const (
	tagObjectDocket   = "docket"
	tagObjectEntry    = "docket_entry"
	tagObjectDocument = "document"
	tagObjectClaim    = "claim"
)

// ensureTags gets or creates the named tags. Concurrent creators of the same
// tag are absorbed by the unique name index.
func ensureTags(tx *gorm.DB, names []string) ([]database.Tag, error) {
	seen := make(map[string]bool, len(names))
	var clean []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		clean = append(clean, n)
	}
	if len(clean) == 0 {
		return nil, nil
	}

	rows := make([]database.Tag, len(clean))
	for i, n := range clean {
		rows[i] = database.Tag{Name: n}
	}
	if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error; err != nil {
		return nil, classify(err)
	}

	var tags []database.Tag
	if err := tx.Where("name IN ?", clean).Order("id").Find(&tags).Error; err != nil {
		return nil, classify(err)
	}
	return tags, nil
}

// tagObjects links every tag to the given rows. Existing links are kept.
func tagObjects(tx *gorm.DB, tags []database.Tag, objectType string, ids ...uint) error {
	if len(tags) == 0 || len(ids) == 0 {
		return nil
	}
	links := make([]database.TaggedObject, 0, len(tags)*len(ids))
	for _, t := range tags {
		for _, id := range ids {
			links = append(links, database.TaggedObject{TagID: t.ID, ObjectType: objectType, ObjectID: id})
		}
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tag_id"}, {Name: "object_type"}, {Name: "object_id"}},
		DoNothing: true,
	}).Create(&links).Error
	return classify(err)
}

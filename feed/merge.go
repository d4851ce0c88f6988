package feed

import (
	"scrollfeed/models"

	"github.com/samber/lo"
)

func itemID(item models.Item, _ int) string {
	return item.ID
}

// unseen returns the incoming items whose ids are neither in existing nor
// repeated earlier in incoming
func unseen(existing, incoming []models.Item) []models.Item {
	seen := lo.SliceToMap(existing, func(item models.Item) (string, struct{}) {
		return item.ID, struct{}{}
	})
	return lo.Filter(lo.UniqBy(incoming, func(item models.Item) string { return item.ID }), func(item models.Item, _ int) bool {
		_, ok := seen[item.ID]
		return !ok
	})
}

// IDs returns the ids of items in order
func IDs(items []models.Item) []string {
	return lo.Map(items, itemID)
}

// appendUnique adds incoming items after existing ones, skipping ids that
// are already present
func appendUnique(existing, incoming []models.Item) []models.Item {
	fresh := unseen(existing, incoming)
	out := make([]models.Item, 0, len(existing)+len(fresh))
	out = append(out, existing...)
	return append(out, fresh...)
}

// prependUnique puts incoming items in front of existing ones, in incoming
// order, skipping ids that are already present
func prependUnique(existing, incoming []models.Item) []models.Item {
	fresh := unseen(existing, incoming)
	out := make([]models.Item, 0, len(existing)+len(fresh))
	out = append(out, fresh...)
	return append(out, existing...)
}

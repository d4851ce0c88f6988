package server

import (
	"strconv"
	"strings"

	"scrollfeed/models"
	"scrollfeed/store"

	"github.com/samber/lo"
)

// parsePage parses the page query parameter. Pages start at 1, anything
// else is rejected.
func parsePage(raw string) (int, bool) {
	if raw == "" {
		return 1, true
	}
	page, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || page < 1 {
		return 0, false
	}
	return int(page), true
}

// safeParseLimit parses the limit query parameter. Invalid or out of range
// values fall back to models.PageSize.
func safeParseLimit(raw string) int {
	limit, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || limit < 1 || limit > store.MaxLimit {
		return models.PageSize
	}
	return int(limit)
}

// parseIDs splits a comma separated id list, dropping blanks and repeats
func parseIDs(raw string) []string {
	ids := lo.FilterMap(strings.Split(raw, ","), func(id string, _ int) (string, bool) {
		id = strings.TrimSpace(id)
		return id, id != ""
	})
	return lo.Uniq(ids)
}

package client

import (
	"time"

	"github.com/samber/lo"

	"github.com/Vasu1712/bookmate-backend/internal/models"
)

// Group holds the items sharing Key.
type Group[K comparable, T any] struct {
	Key   K
	Items []T
}

// GroupBy gathers items sharing a key into one group. Groups appear in the
// order their key is first seen, and items keep their order within a group.
func GroupBy[T any, K comparable](items []T, key func(T) K) []Group[K, T] {
	parts := lo.PartitionBy(items, key)
	return lo.Map(parts, func(part []T, _ int) Group[K, T] {
		return Group[K, T]{Key: key(part[0]), Items: part}
	})
}

const dayLayout = "2006-01-02"

// GroupByDay groups a chronological history by calendar day in loc.
func GroupByDay(msgs []models.Message, loc *time.Location) []Group[string, models.Message] {
	return GroupBy(msgs, func(m models.Message) string {
		return m.CreatedAt.In(loc).Format(dayLayout)
	})
}

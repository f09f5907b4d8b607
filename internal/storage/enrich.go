package storage

import (
	"context"

	"github.com/samber/lo"

	"github.com/Vasu1712/bookmate-backend/internal/models"
)

// Enrich fills in the sender and receiver display names of msgs in place.
// Participants the directory does not know keep an empty name.
func Enrich(ctx context.Context, directory UserDirectory, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := lo.Uniq(lo.FlatMap(msgs, func(m models.Message, _ int) []string {
		return []string{m.Sender.ID, m.Receiver.ID}
	}))
	names, err := directory.DisplayNames(ctx, ids)
	if err != nil {
		return err
	}
	for i := range msgs {
		msgs[i].Sender.UserName = names[msgs[i].Sender.ID]
		msgs[i].Receiver.UserName = names[msgs[i].Receiver.ID]
	}
	return nil
}

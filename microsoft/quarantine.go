// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package microsoft

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"go.mondoo.com/cnharvest/converge"
	"go.mondoo.com/cnharvest/harvest"
	"go.mondoo.com/cnharvest/logger"
)

// DefaultPurgeBatch caps how many quarantined messages one purge round
// deletes.
const DefaultPurgeBatch = 500

// QuarantineMessage is one quarantined mail item.
type QuarantineMessage struct {
	ID               string `mapstructure:"id"`
	ReceivedDateTime string `mapstructure:"receivedDateTime"`
	SenderAddress    string `mapstructure:"senderAddress"`
	RecipientAddress string `mapstructure:"recipientAddress"`
	Subject          string `mapstructure:"subject"`
	QuarantineReason string `mapstructure:"quarantineReason"`
}

// QuarantineMessagesEndpoint lists the current quarantine content.
func QuarantineMessagesEndpoint() harvest.Endpoint {
	return harvest.Endpoint{
		Name:     "quarantine-messages",
		Path:     "/api/quarantine/messages",
		PageSize: 500,
		Schema:   QuarantineMessageSchema(),
	}
}

func QuarantineMessageSchema() *harvest.Schema {
	return harvest.NewSchema("quarantine-messages",
		harvest.Field{Name: "id", Kind: harvest.KindString, Required: true},
		harvest.Field{Name: "receivedDateTime", Kind: harvest.KindTime},
		harvest.Field{Name: "senderAddress", Kind: harvest.KindString},
		harvest.Field{Name: "recipientAddress", Kind: harvest.KindString},
		harvest.Field{Name: "subject", Kind: harvest.KindString},
		harvest.Field{Name: "quarantineReason", Kind: harvest.KindString},
	)
}

// DecodeQuarantineMessage turns a validated record into its typed row.
func DecodeQuarantineMessage(rec harvest.RawRecord) (*QuarantineMessage, error) {
	var m QuarantineMessage
	if err := mapstructure.WeakDecode(map[string]interface{}(rec), &m); err != nil {
		return nil, errors.Wrap(err, "cannot decode quarantine message")
	}
	return &m, nil
}

type purgeRequest struct {
	IDs []string `json:"ids"`
}

type purgeResponse struct {
	Deleted int `json:"deleted"`
}

// PurgeStep returns a step that empties the quarantine one batch per
// round. Each round lists the quarantine again and deletes up to batch
// messages, so items that arrive while purging are picked up by a later
// round. The quarantine listing is eventually consistent, which is why
// the step never assumes a deletion is visible before the next listing.
func PurgeStep(client *harvest.Client, batch int) converge.Step {
	if batch <= 0 {
		batch = DefaultPurgeBatch
	}
	ep := QuarantineMessagesEndpoint()

	return func(ctx context.Context) (int, int, error) {
		it := client.Harvest(ctx, ep)
		var ids []string
		for it.Scan() {
			ids = append(ids, it.Record().String("id"))
		}
		if err := it.Err(); err != nil {
			return 0, 0, err
		}
		if len(ids) == 0 {
			return 0, 0, nil
		}

		total := it.Total()
		if total < 0 {
			total = len(ids)
		}

		act := ids
		if len(act) > batch {
			act = act[:batch]
		}

		var res purgeResponse
		err := client.Post(ctx, "/api/quarantine/messages/purge", purgeRequest{IDs: act}, &res)
		if err != nil {
			return 0, 0, err
		}
		if res.Deleted != len(act) {
			logger.FromContext(ctx).Debug().
				Int("requested", len(act)).
				Int("deleted", res.Deleted).
				Msg("purge deleted fewer messages than requested")
		}

		remaining := total - res.Deleted
		if remaining < 0 {
			remaining = 0
		}
		return remaining, res.Deleted, nil
	}
}

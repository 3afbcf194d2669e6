package inbound

import "time"

/* InboundWebhook represents a webhook delivery received from a third-party
 * provider. Uses value semantics as it represents data, not behavior.
 *
 * Body holds the payload byte-for-byte as it arrived on the wire and is
 * write-once; only Status and UpdatedAt change after creation.
 */
type InboundWebhook struct {
	ID        string
	Provider  string
	Body      []byte
	Headers   map[string]string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

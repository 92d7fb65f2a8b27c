package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the stable structure stored in outbox_events.payload and
// published as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

package handler

import (
	"encoding/json"

	"school-relay/internal/domain"
)

// webhookPayload is the subset of the WhatsApp Cloud API notification the
// relay reads. Every level may be absent.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []json.RawMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
}

// extractMessages flattens a delivery into inbound messages in payload
// order. A body that does not decode yields no messages; a single message
// that does not decode is dropped without affecting its neighbours.
func extractMessages(body []byte) []domain.InboundMessage {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil
	}
	var out []domain.InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, raw := range change.Value.Messages {
				var m webhookMessage
				if err := json.Unmarshal(raw, &m); err != nil {
					continue
				}
				msg := domain.InboundMessage{
					ID:     m.ID,
					Sender: m.From,
					Type:   domain.MessageType(m.Type),
				}
				if msg.IsText() && m.Text != nil {
					msg.Body = m.Text.Body
				}
				out = append(out, msg)
			}
		}
	}
	return out
}

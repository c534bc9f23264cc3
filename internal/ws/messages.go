package ws

import (
	"encoding/json"
	"slices"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> Server messages

type SubscribePayload struct {
	BuildingIDs []string `json:"building_ids"`
}

// Server -> Client messages

type StatusPayload struct {
	App     string      `json:"app"`
	Version string      `json:"version"`
	Models  []ModelInfo `json:"models"`
}

type ModelInfo struct {
	BuildingID string `json:"building_id"`
	Version    string `json:"version"`
	Algorithm  string `json:"algorithm"`
	TrainedAt  string `json:"trained_at"`
}

type SubscriptionsPayload struct {
	BuildingIDs []string `json:"building_ids"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Message type constants
const (
	// Client -> Server
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"

	// Server -> Client
	TypeStatus        = "server:status"
	TypeSubscriptions = "subscriptions"
	TypeModelTrained  = "model:trained"
	TypeForecastReady = "forecast:ready"
	TypeError         = "error"
)

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func subscriptions(ids []string) SubscriptionsPayload {
	slices.Sort(ids)
	return SubscriptionsPayload{BuildingIDs: ids}
}

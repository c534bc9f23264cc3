package ws

import (
	"context"
	"fmt"

	"energy_forecast/internal/events"
)

// Bridge implements events.Notifier and broadcasts events to the WebSocket hub.
type Bridge struct {
	hub *Hub
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

func (b *Bridge) ModelTrained(_ context.Context, e events.ModelTrained) error {
	return b.broadcast(TypeModelTrained, e.BuildingID, e)
}

func (b *Bridge) ForecastReady(_ context.Context, e events.ForecastReady) error {
	return b.broadcast(TypeForecastReady, e.BuildingID, e)
}

func (b *Bridge) broadcast(msgType, buildingID string, payload any) error {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	b.hub.Broadcast(buildingID, msg)
	return nil
}

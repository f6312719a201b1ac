package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewAuditEvent(t *testing.T) {
	noteID := uuid.New()

	event, err := NewAuditEvent(noteID, "carlos", ItemAddedPayload{PartCode: "P-1", Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, noteID, event.DeliveryNoteID)
	require.Equal(t, "carlos", event.Actor)
	require.Equal(t, ActionItemAdded, event.Action)

	var payload ItemAddedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	require.Equal(t, "P-1", payload.PartCode)
	require.Equal(t, 2, payload.Quantity)
}

func TestNewAuditEventActorFallback(t *testing.T) {
	event, err := NewAuditEvent(uuid.New(), "", HeaderEditPayload{})
	require.NoError(t, err)
	require.Equal(t, SystemActor, event.Actor)
}

func TestPayloadActions(t *testing.T) {
	require.Equal(t, ActionHeaderEdit, HeaderEditPayload{}.AuditAction())
	require.Equal(t, ActionItemAdded, ItemAddedPayload{}.AuditAction())
	require.Equal(t, ActionItemRemoved, ItemRemovedPayload{}.AuditAction())
	require.Equal(t, ActionQuantityChanged, QuantityChangedPayload{}.AuditAction())
}

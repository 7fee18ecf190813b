package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novatrust/bio-gateway/internal/core/event"
)

type capturingGateway struct {
	notified [][]byte
	err      error
}

func (g *capturingGateway) Notify(_ context.Context, msg []byte) error {
	if g.err != nil {
		return g.err
	}
	g.notified = append(g.notified, msg)
	return nil
}

func TestSendOperationCompletedNotification(t *testing.T) {
	gw := &capturingGateway{}
	svc := NewNotification(gw)

	ev := &event.OperationCompleted{OperationID: "op-1", UserID: "user-1", Kind: "authentication"}
	msg, err := ev.Marshal()
	require.NoError(t, err)

	require.NoError(t, svc.SendOperationCompletedNotification(context.Background(), msg))
	require.Len(t, gw.notified, 1)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(gw.notified[0], &payload))
	assert.Equal(t, event.OperationCompletedEvent, payload.Type)
	assert.Equal(t, "op-1", payload.OperationID)
	assert.Equal(t, "user-1", payload.UserID)
	assert.Empty(t, payload.Reasons)
}

func TestSendOperationFailedNotification(t *testing.T) {
	gw := &capturingGateway{}
	svc := NewNotification(gw)

	ev := &event.OperationFailed{
		OperationID: "op-1",
		UserID:      "user-1",
		Kind:        "enrollment",
		State:       "failed",
		Reasons:     []string{"LivenessFailed"},
	}
	msg, err := ev.Marshal()
	require.NoError(t, err)

	require.NoError(t, svc.SendOperationFailedNotification(context.Background(), msg))
	require.Len(t, gw.notified, 1)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(gw.notified[0], &payload))
	assert.Equal(t, "failed", payload.State)
	assert.Equal(t, []string{"LivenessFailed"}, payload.Reasons)
}

func TestSendNotificationBadPayload(t *testing.T) {
	svc := NewNotification(&capturingGateway{})

	err := svc.SendOperationCompletedNotification(context.Background(), []byte("not json"))
	require.Error(t, err)
}

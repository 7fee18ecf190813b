package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/novatrust/bio-gateway/internal/core/event"
	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/internal/log"
	"github.com/novatrust/bio-gateway/internal/pubsub"
)

type webhookPayload struct {
	Type        string   `json:"type"`
	OperationID string   `json:"operationId"`
	UserID      string   `json:"userId"`
	Kind        string   `json:"kind"`
	State       string   `json:"state,omitempty"`
	Reasons     []string `json:"reasons,omitempty"`
}

type notification struct {
	notificationGateway ports.NotificationGateway
}

// NewNotification returns a Notification Service
func NewNotification(notificationGateway ports.NotificationGateway) ports.NotificationService {
	return &notification{notificationGateway: notificationGateway}
}

// SendOperationCompletedNotification delivers a webhook for a completed operation
func (n *notification) SendOperationCompletedNotification(ctx context.Context, payload pubsub.Message) error {
	var ev event.OperationCompleted
	if err := ev.Unmarshal(payload); err != nil {
		return errors.New("sendOperationCompletedNotification unexpected data type")
	}

	return n.send(ctx, webhookPayload{
		Type:        event.OperationCompletedEvent,
		OperationID: ev.OperationID,
		UserID:      ev.UserID,
		Kind:        ev.Kind,
	})
}

// SendOperationFailedNotification delivers a webhook for a failed or expired operation
func (n *notification) SendOperationFailedNotification(ctx context.Context, payload pubsub.Message) error {
	var ev event.OperationFailed
	if err := ev.Unmarshal(payload); err != nil {
		return errors.New("sendOperationFailedNotification unexpected data type")
	}

	return n.send(ctx, webhookPayload{
		Type:        event.OperationFailedEvent,
		OperationID: ev.OperationID,
		UserID:      ev.UserID,
		Kind:        ev.Kind,
		State:       ev.State,
		Reasons:     ev.Reasons,
	})
}

func (n *notification) send(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if err := n.notificationGateway.Notify(ctx, body); err != nil {
		log.Error(ctx, "sending webhook notification", "err", err, "operationID", payload.OperationID, "type", payload.Type)
		return err
	}

	log.Info(ctx, "webhook notification sent", "operationID", payload.OperationID, "type", payload.Type)
	return nil
}

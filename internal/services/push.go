package services

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// Pusher delivers a notification to a user device. Implementations are
// best effort; callers log and drop failures.
type Pusher interface {
	Push(ctx context.Context, token, message string) error
}

// FCMPusher delivers pushes through Firebase Cloud Messaging
type FCMPusher struct {
	client *messaging.Client
}

func NewFCMPusher(client *messaging.Client) *FCMPusher {
	return &FCMPusher{client: client}
}

func (p *FCMPusher) Push(ctx context.Context, token, message string) error {
	if p.client == nil {
		return nil
	}
	_, err := p.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: "Bookhive",
			Body:  message,
		},
	})
	return err
}

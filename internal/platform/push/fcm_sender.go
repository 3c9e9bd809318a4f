package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"github.com/foodhub/api/internal/platform/textutil"
	"github.com/foodhub/api/internal/services"
)

type multicastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender delivers push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client    multicastClient
	isInvalid func(error) bool
}

var _ services.PushSender = (*FCMSender)(nil)

// NewFCMSender builds a sender from the Admin SDK app.
func NewFCMSender(ctx context.Context, app *firebase.App) (*FCMSender, error) {
	if app == nil {
		return nil, errors.New("fcm sender: firebase app is required")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase messaging client: %w", err)
	}
	return newFCMSender(client), nil
}

func newFCMSender(client multicastClient) *FCMSender {
	return &FCMSender{client: client, isInvalid: invalidToken}
}

// invalidToken reports provider errors that mean the token will never work again.
func invalidToken(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) || messaging.IsSenderIDMismatch(err)
}

// SendMulticast sends one message to at most services.MaxPushBatch tokens.
func (s *FCMSender) SendMulticast(ctx context.Context, msg services.PushMessage, tokens []string) (services.PushReport, error) {
	if len(tokens) == 0 {
		return services.PushReport{}, nil
	}
	if len(tokens) > services.MaxPushBatch {
		return services.PushReport{}, fmt.Errorf("fcm sender: %d tokens exceed the batch limit of %d", len(tokens), services.MaxPushBatch)
	}

	resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   textutil.StringifyMap(msg.Data),
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		return services.PushReport{}, fmt.Errorf("send multicast: %w", err)
	}

	report := services.PushReport{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}
	for i, r := range resp.Responses {
		if r == nil || r.Success || i >= len(tokens) {
			continue
		}
		if s.isInvalid(r.Error) {
			report.InvalidTokens = append(report.InvalidTokens, tokens[i])
		}
	}
	return report, nil
}

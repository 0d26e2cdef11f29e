package adapter

import (
	"context"

	"github.com/sirupsen/logrus"

	repository "go-courier/internal/pkg/delivery/persistence/repository/port"
)

// LogPushGateway is the development stand-in for a real push provider:
// it records the notification and reports success. Swapped for an
// APNs/FCM-backed adapter in deployments that carry one.
type LogPushGateway struct{}

func NewLogPushGateway() *LogPushGateway {
	return &LogPushGateway{}
}

var _ repository.PushGateway = (*LogPushGateway)(nil)

func (g *LogPushGateway) Notify(ctx context.Context, userID int64, title, body string, extra map[string]string) (bool, error) {
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"title":   title,
		"extra":   extra,
	}).Info("offline push notification")
	return true, nil
}

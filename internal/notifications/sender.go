package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

// PushSender publishes Expo messages. ExpoAdapter is the production one.
type PushSender interface {
	Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error)
	PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error)
}

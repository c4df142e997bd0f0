package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

type ExpoAdapter struct {
	client *exponent.Client
}

// NewExpoAdapter builds a client; accessToken may be empty when the Expo
// project does not enforce push security.
func NewExpoAdapter(accessToken string) *ExpoAdapter {
	if accessToken == "" {
		return &ExpoAdapter{client: exponent.NewClient()}
	}
	return &ExpoAdapter{client: exponent.NewClient(exponent.WithAccessToken(accessToken))}
}

func (a *ExpoAdapter) Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	return a.client.Publish(ctx, msgs)
}

func (a *ExpoAdapter) PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error) {
	return a.client.PublishSingle(ctx, msg)
}

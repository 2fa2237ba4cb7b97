package publish

import "context"

// Publisher delivers captions to the channel.
type Publisher interface {
	// Publish sends an image with caption when imageURL is set, otherwise a text message
	// with link previews disabled.
	Publish(ctx context.Context, caption, imageURL string) error
	// NotifyError sends a plain failure notice.
	NotifyError(ctx context.Context, message string) error
}

package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/model"
)

// logSender is a channel Sender that logs the rendered content instead of
// calling a real provider, grounded on the notification-service's
// sendEmailMock (which never dials out, only logs the EmailTemplate it
// built). Every channel here plays the same role until a real provider
// integration replaces it.
type logSender struct {
	channel model.Channel
	clock   clock.Clock
}

func NewLogSender(channel model.Channel, c clock.Clock) Sender {
	return &logSender{channel: channel, clock: c}
}

func (s *logSender) Channel() model.Channel { return s.channel }

func (s *logSender) Send(ctx context.Context, d model.NotificationDispatch, rendered Rendered) (model.DeliveryResult, string, error) {
	externalID := clock.NewID()
	log.Printf("notify[%s] -> %s at %s\nsubject: %s\n%s",
		s.channel, d.Recipient, s.clock.Now().Format("2006-01-02T15:04:05Z07:00"), rendered.Subject, rendered.Body)
	return model.DeliveryDelivered, externalID, nil
}

// WebhookSender handles the WEBHOOK channel. Kept separate from logSender
// because a webhook recipient is a callback URL, not a mailbox/number.
// Send logs the rendered payload with the recipient URL and reports it
// delivered; it makes no HTTP request, so it never returns a transport
// failure.
type WebhookSender struct {
	clock clock.Clock
}

func NewWebhookSender(c clock.Clock) Sender {
	return &WebhookSender{clock: c}
}

func (s *WebhookSender) Channel() model.Channel { return model.ChannelWebhook }

func (s *WebhookSender) Send(ctx context.Context, d model.NotificationDispatch, rendered Rendered) (model.DeliveryResult, string, error) {
	// A real implementation would sign and POST rendered.Body to
	// d.Recipient with a short client timeout. No outbound HTTP client is
	// wired for this mock tier, so the attempt is logged and treated as
	// delivered, matching the other channel mocks.
	externalID := clock.NewID()
	log.Printf("notify[WEBHOOK] -> %s at %s: %s", d.Recipient, s.clock.Now().Format(time.RFC3339), rendered.Body)
	return model.DeliveryDelivered, externalID, nil
}

func unsupportedChannel(ch model.Channel) error {
	return fmt.Errorf("notify: no sender registered for channel %q", ch)
}

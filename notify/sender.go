package notify

import (
	"context"

	"github.com/arunvm123/reservationengine/model"
)

// Sender delivers one rendered notification over a single channel and
// interprets the provider's response into the §4.I delivery-result
// taxonomy, grounded on the notification-service's sendEmailMock, whose
// signature this generalizes from EMAIL-only to every Channel.
type Sender interface {
	Channel() model.Channel
	Send(ctx context.Context, d model.NotificationDispatch, rendered Rendered) (result model.DeliveryResult, externalID string, err error)
}

// Rendered is a dispatch's content after template substitution.
type Rendered struct {
	Subject string
	Body    string
}

package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/model"
	goslack "github.com/slack-go/slack"
)

// SlackAlerter posts a message to an incoming webhook when a dispatch is
// deadlettered, grounded on wisbric-nightowl's Notifier.IsEnabled/noop
// pattern — adapted from that notifier's bot-token PostMessageContext to
// slack-go's PostWebhookContext, since this configuration carries only a webhook
// URL (config.Slack.WebhookURL), not a bot token.
type SlackAlerter struct {
	webhookURL string
	channel    string
	enabled    bool
}

func NewSlackAlerter(cfg config.Slack) *SlackAlerter {
	return &SlackAlerter{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.WebhookURL != "",
	}
}

func (a *SlackAlerter) AlertDeadletter(channel model.Channel, dispatch model.NotificationDispatch, cause string) {
	if !a.enabled {
		log.Printf("notify alert (slack disabled): %s dispatch %s deadlettered: %s", channel, dispatch.ID, cause)
		return
	}
	msg := &goslack.WebhookMessage{
		Channel: a.channel,
		Text: fmt.Sprintf(":rotating_light: notification deadlettered — channel=%s tenant=%s recipient=%s template=%s cause=%s",
			channel, dispatch.Tenant, dispatch.Recipient, dispatch.TemplateType, cause),
	}
	if err := goslack.PostWebhookContext(context.Background(), a.webhookURL, msg); err != nil {
		log.Printf("notify alert: failed to post slack webhook: %v", err)
	}
}

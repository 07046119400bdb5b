package validator

import (
	"fmt"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/httpclient"
)

// WebHookNewBlockMessage is the message send to the webhook url about new validated block.
type WebHookNewBlockMessage struct {
	Token string      `json:"token"`           // Token given to the webhook by the webhooks creator to validate the message source.
	Block block.Block `json:"block"`           // Block is the block that was mined.
	Valid bool        `json:"valid"`           // Valid is the flag that indicates if the block is valid.
	Error string      `json:"error,omitempty"` // Error is the reason of the block rejection.
}

// WebHookResponse is the response expected from the webhook.
type WebHookResponse struct {
	Ok bool `json:"ok"`
}

func (a *app) postWebhookBlock(b *block.Block, verdict error) {
	msg := WebHookNewBlockMessage{
		Token: a.cfg.WebhookToken,
		Block: *b,
		Valid: verdict == nil,
	}
	if verdict != nil {
		msg.Error = verdict.Error()
	}

	var res WebHookResponse
	if err := httpclient.MakePost(requestTimeout, a.cfg.WebhookURL, msg, &res); err != nil {
		a.log.Error(fmt.Sprintf("validator webhook post failed, %s", err.Error()))
		return
	}
	if !res.Ok {
		a.log.Warn(fmt.Sprintf("validator webhook did not acknowledge block %x", b.Hash))
	}
}

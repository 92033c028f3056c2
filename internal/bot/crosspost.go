package bot

import (
	"context"
	"fmt"
	"html"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/crossposter/internal/approval"
)

// crossPost publishes an approved candidate to every enabled platform and
// reports the outcome in the group as a reply to the original message.
func (b *Bot) crossPost(ctx context.Context, c approval.Candidate) {
	logger := b.logger.With("candidate_id", c.ID)

	chatID, msgID, err := ParseCandidateID(c.ID)
	if err != nil {
		logger.Error("cannot cross-post", "error", err)
		return
	}
	origin := MessageRef(chatID, msgID)

	if len(b.dispatcher.Publishers()) == 0 {
		b.notify(origin, MsgNoPlatforms)
		return
	}
	b.notify(origin, MsgCrosspostInitiated)

	post, err := b.buildPost(c.Content)
	if err != nil {
		logger.Error("failed to fetch media", "error", err)
		b.notify(origin, fmt.Sprintf(MsgFmtMediaFailed, html.EscapeString(truncateError(err))))
		return
	}

	d := b.dispatcher.Dispatch(ctx, post)
	b.observer.ObserveDispatch(d)

	if b.deliveries != nil {
		if err := b.deliveries.RecordDispatch(c, d); err != nil {
			logger.Error("failed to record deliveries", "dispatch_id", d.ID, "error", err)
		}
	}

	logger.Info("cross-post finished",
		"dispatch_id", d.ID,
		"platforms", len(d.Results),
		"failed", d.Failed(),
	)

	report, err := RenderReport(d)
	if err != nil {
		logger.Error("failed to render report", "error", err)
		return
	}
	b.notify(origin, report)
}

func (b *Bot) notify(replyTo *tele.Message, text string) {
	_, err := b.api.Send(replyTo.Chat, text, &tele.SendOptions{
		ReplyTo:   replyTo,
		ParseMode: tele.ModeHTML,
	})
	if err != nil {
		b.logger.Warn("failed to send notification", "chat_id", replyTo.Chat.ID, "error", err)
	}
}

package bot

import (
	"sort"
	"time"

	tele "gopkg.in/telebot.v4"
)

// pendingTTL is how long the /pending and /deliveries answers stay in the chat.
const pendingTTL = time.Minute

// deliveriesWindow is the look-back period of /deliveries.
const deliveriesWindow = 24 * time.Hour

// RegisterCommands sets up public commands and the admin-only group.
func (b *Bot) RegisterCommands() {
	b.bot.Handle("/start", b.handleStart, b.HandleErrors())

	adminGroup := b.bot.Group()
	adminGroup.Use(b.AdminOnly())
	adminGroup.Use(b.DeleteCommand())
	adminGroup.Use(b.HandleErrors())

	adminGroup.Handle("/pending", b.handlePending)
	adminGroup.Handle("/deliveries", b.handleDeliveries)
}

// handleStart explains how tagging and approval work.
func (b *Bot) handleStart(c tele.Context) error {
	cfg := b.tracker.Config()
	text, err := RenderStart(&StartData{
		Tag:       b.tag,
		Required:  cfg.RequiredReactions,
		Window:    cfg.ExpirationWindow,
		Platforms: b.dispatcher.Publishers(),
	})
	if err != nil {
		return WrapUserError(MsgFailedRenderStart, err)
	}
	return c.Send(text, tele.ModeHTML)
}

// handlePending lists candidates of this chat that still wait for approval.
func (b *Bot) handlePending(c tele.Context) error {
	text, err := b.pendingText(c.Chat().ID)
	if err != nil {
		return err
	}

	b.logger.Info("command /pending",
		"user_id", c.Sender().ID,
		"chat_id", c.Chat().ID,
	)

	msg, err := b.api.Send(c.Chat(), text, tele.ModeHTML)
	if err != nil {
		return WrapUserError(MsgFailedSendPending, err)
	}
	b.deleteLater(msg, pendingTTL)
	return nil
}

func (b *Bot) pendingText(chatID int64) (string, error) {
	data := &PendingData{
		Required: b.tracker.Config().RequiredReactions,
		Window:   b.tracker.Config().ExpirationWindow,
	}
	for _, cand := range b.tracker.Pending() {
		id, _, err := ParseCandidateID(cand.ID)
		if err != nil || id != chatID {
			continue
		}
		data.Candidates = append(data.Candidates, cand)
	}
	if len(data.Candidates) == 0 {
		return "", UserErrorf(MsgNothingPending)
	}

	text, err := RenderPending(data)
	if err != nil {
		return "", WrapUserError(MsgFailedRenderPending, err)
	}
	return text, nil
}

// deleteLater removes msg after ttl unless the bot is shutting down first.
func (b *Bot) deleteLater(msg *tele.Message, ttl time.Duration) {
	if b.bot == nil || msg == nil {
		return
	}
	ctx := b.ctx
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(ttl):
			if err := b.bot.Delete(msg); err != nil {
				b.logger.Debug("failed to delete temporary message", "error", err)
			}
		}
	}()
}

// handleDeliveries summarizes failed deliveries per platform over the last day.
func (b *Bot) handleDeliveries(c tele.Context) error {
	text, err := b.deliveriesText()
	if err != nil {
		return err
	}

	b.logger.Info("command /deliveries",
		"user_id", c.Sender().ID,
		"chat_id", c.Chat().ID,
	)

	msg, err := b.api.Send(c.Chat(), text, tele.ModeHTML)
	if err != nil {
		return WrapUserError(MsgInternalError, err)
	}
	b.deleteLater(msg, pendingTTL)
	return nil
}

// deliveriesText lists every enabled platform, then any other platform that
// still has failures on record.
func (b *Bot) deliveriesText() (string, error) {
	if b.deliveries == nil {
		return "", UserErrorf(MsgDeliveryLogDisabled)
	}

	counts, err := b.deliveries.CountFailures(b.now().Add(-deliveriesWindow))
	if err != nil {
		return "", WrapUserError(MsgFailedLoadDelivery, err)
	}

	data := &DeliveriesData{Since: deliveriesWindow}
	seen := make(map[string]bool)
	for _, platform := range b.dispatcher.Publishers() {
		seen[platform] = true
		data.Rows = append(data.Rows, DeliveryRow{Platform: platform, Failures: counts[platform]})
	}

	var others []string
	for platform := range counts {
		if !seen[platform] {
			others = append(others, platform)
		}
	}
	sort.Strings(others)
	for _, platform := range others {
		data.Rows = append(data.Rows, DeliveryRow{Platform: platform, Failures: counts[platform]})
	}

	text, err := RenderDeliveries(data)
	if err != nil {
		return "", WrapUserError(MsgFailedLoadDelivery, err)
	}
	return text, nil
}

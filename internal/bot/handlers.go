package bot

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/crossposter/internal/approval"
)

// approveBtn is the endpoint for 👍 presses; its data carries the candidate ID.
var approveBtn = tele.Btn{Unique: "approve"}

func (b *Bot) RegisterHandlers() {
	for _, event := range []string{tele.OnText, tele.OnPhoto, tele.OnVideo, tele.OnAnimation} {
		b.bot.Handle(event, b.handleMessage)
	}
	b.bot.Handle(&approveBtn, b.handleApprove)
}

func approveMarkup(candidateID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("👍", approveBtn.Unique, candidateID)))
	return markup
}

func (b *Bot) handleMessage(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return nil
	}
	return b.track(msg)
}

// track registers a tagged message as a candidate and posts its approval prompt.
func (b *Bot) track(msg *tele.Message) error {
	content, ok := ExtractContent(msg, b.tag)
	if !ok {
		return nil
	}

	id := CandidateID(msg.Chat.ID, msg.ID)
	candidate, created := b.tracker.Track(id, content, b.now())
	if !created {
		return nil // edited or redelivered message
	}
	b.observer.CandidateTracked()

	text, err := RenderPrompt(candidate, b.tracker.Config().RequiredReactions)
	if err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}

	prompt, err := b.api.Send(msg.Chat, text, &tele.SendOptions{
		ReplyTo:     msg,
		ReplyMarkup: approveMarkup(id),
		ParseMode:   tele.ModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}

	attached, err := b.tracker.AttachPrompt(id, prompt.ID)
	if err != nil {
		b.logger.Warn("failed to attach prompt", "candidate_id", id, "error", err)
		return nil
	}
	// A vote may have finalized the candidate before the prompt was known.
	if attached.Status.IsTerminal() {
		if err := b.refreshPrompt(attached); err != nil {
			b.logger.Warn("failed to update prompt", "candidate_id", id, "error", err)
		}
	}

	b.logger.Info("approval prompt sent",
		"candidate_id", id,
		"prompt_id", prompt.ID,
		"user_id", senderID(msg),
	)
	return nil
}

func (b *Bot) handleApprove(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return c.Respond()
	}

	answer, err := b.approve(c.Data(), sender.ID)
	if err != nil {
		b.logger.Error("failed to process reaction",
			"candidate_id", c.Data(),
			"user_id", sender.ID,
			"error", err,
		)
	}
	return c.Respond(&tele.CallbackResponse{Text: answer})
}

// approve records a 👍 from voterID and updates the prompt to match the
// candidate's new state. It returns the toast shown to the voter.
func (b *Bot) approve(candidateID string, voterID int64) (string, error) {
	out, err := b.tracker.RecordReaction(candidateID, voterID, b.now())
	if errors.Is(err, approval.ErrNotFound) {
		return MsgNotTracked, nil
	}
	if err != nil {
		return MsgInternalError, err
	}
	b.observer.ObserveReaction(out)

	b.logger.Debug("reaction processed",
		"candidate_id", candidateID,
		"user_id", voterID,
		"outcome", out.Label(),
		"count", out.Count,
	)

	switch out.Kind {
	case approval.OutcomeRecorded:
		return MsgVoteCounted, b.refreshPrompt(out.Candidate)

	case approval.OutcomeThresholdReached:
		if err := b.refreshPrompt(out.Candidate); err != nil {
			b.logger.Warn("failed to update prompt", "candidate_id", candidateID, "error", err)
		}
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			b.crossPost(b.ctx, out.Candidate)
		}()
		return MsgCrosspostStarted, nil
	}

	switch out.Reason {
	case approval.ReasonDuplicateVoter:
		return MsgAlreadyVoted, nil
	case approval.ReasonExpired:
		return MsgVotingExpired, b.refreshPrompt(out.Candidate)
	default:
		return MsgVotingClosed, nil
	}
}

// refreshPrompt rewrites the approval prompt for c. Finalized candidates lose
// their 👍 button.
func (b *Bot) refreshPrompt(c approval.Candidate) error {
	if c.PromptID == 0 {
		return nil
	}
	chatID, _, err := ParseCandidateID(c.ID)
	if err != nil {
		return err
	}

	text, err := RenderPrompt(c, b.tracker.Config().RequiredReactions)
	if err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}

	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if c.Status == approval.StatusPending {
		opts.ReplyMarkup = approveMarkup(c.ID)
	}

	_, err = b.api.Edit(MessageRef(chatID, c.PromptID), text, opts)
	if errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}

func senderID(msg *tele.Message) int64 {
	if msg.Sender == nil {
		return 0
	}
	return msg.Sender.ID
}

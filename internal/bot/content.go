package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/crossposter/internal/approval"
)

var errBadCandidateID = errors.New("malformed candidate id")

// CandidateID identifies a tagged message across chats.
func CandidateID(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// ParseCandidateID is the inverse of CandidateID.
func ParseCandidateID(id string) (chatID int64, messageID int, err error) {
	chatPart, msgPart, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", errBadCandidateID, id)
	}
	chatID, err = strconv.ParseInt(chatPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", errBadCandidateID, id)
	}
	messageID, err = strconv.Atoi(msgPart)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", errBadCandidateID, id)
	}
	return chatID, messageID, nil
}

// HasTag reports whether text carries the marker tag as a whole word.
func HasTag(text, tag string) bool {
	if tag == "" {
		return false
	}
	for _, field := range strings.Fields(text) {
		if isTag(field, tag) {
			return true
		}
	}
	return false
}

func isTag(word, tag string) bool {
	return strings.EqualFold(strings.TrimRight(word, ".,!?;:"), tag)
}

// StripTag removes every occurrence of tag and tidies the whitespace it leaves.
func StripTag(text, tag string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		words := strings.Fields(line)
		kept := words[:0]
		for _, w := range words {
			if isTag(w, tag) {
				continue
			}
			kept = append(kept, w)
		}
		if len(words) > 0 && len(kept) == 0 {
			continue
		}
		out = append(out, strings.Join(kept, " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// ExtractContent turns a tagged message into candidate content. It returns
// false when the message is untagged or leaves nothing to publish.
func ExtractContent(msg *tele.Message, tag string) (approval.Content, bool) {
	if msg == nil {
		return approval.Content{}, false
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if !HasTag(text, tag) {
		return approval.Content{}, false
	}

	content := approval.Content{Text: StripTag(text, tag)}

	switch {
	case msg.Photo != nil:
		content.Media = append(content.Media, approval.Media{
			Kind:     approval.MediaPhoto,
			FileID:   msg.Photo.FileID,
			MimeType: "image/jpeg",
		})
	case msg.Video != nil:
		content.Media = append(content.Media, approval.Media{
			Kind:     approval.MediaVideo,
			FileID:   msg.Video.FileID,
			MimeType: msg.Video.MIME,
		})
	case msg.Animation != nil:
		content.Media = append(content.Media, approval.Media{
			Kind:     approval.MediaAnimation,
			FileID:   msg.Animation.FileID,
			MimeType: msg.Animation.MIME,
		})
	}

	if content.Text == "" && len(content.Media) == 0 {
		return approval.Content{}, false
	}
	return content, true
}

// MessageRef builds a reference to an existing chat message for edits and replies.
func MessageRef(chatID int64, messageID int) *tele.Message {
	return &tele.Message{ID: messageID, Chat: &tele.Chat{ID: chatID}}
}

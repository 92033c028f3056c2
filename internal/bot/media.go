package bot

import (
	"fmt"
	"io"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/crossposter/internal/approval"
	"nuclight.org/crossposter/internal/publish"
)

// maxMediaSize matches the Bot API download limit.
const maxMediaSize = 20 << 20

// buildPost downloads the candidate's media from Telegram.
func (b *Bot) buildPost(content approval.Content) (*publish.Post, error) {
	post := &publish.Post{Text: content.Text}
	for _, m := range content.Media {
		data, err := b.download(m.FileID)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", m.Kind, err)
		}
		post.Media = append(post.Media, publish.Attachment{
			Kind:     m.Kind,
			MimeType: m.MimeType,
			Data:     data,
		})
	}
	return post, nil
}

func (b *Bot) download(fileID string) ([]byte, error) {
	rc, err := b.api.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxMediaSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxMediaSize {
		return nil, fmt.Errorf("file exceeds %d MB", maxMediaSize>>20)
	}
	return data, nil
}

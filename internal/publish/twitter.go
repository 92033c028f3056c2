package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"nuclight.org/crossposter/internal/approval"
)

const (
	DefaultTwitterAPI    = "https://api.twitter.com"
	DefaultTwitterUpload = "https://upload.twitter.com"
	twitterMaxRunes      = 280
	twitterMaxPhotos     = 4
	twitterChunkSize     = 4 << 20
)

type TwitterConfig struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	APIBase      string
	UploadBase   string
	// Client overrides the OAuth1-signing client, mostly for tests.
	Client *http.Client
}

// Twitter posts tweets with OAuth 1.0a user context. Photos go through the
// simple media upload; videos and animations use the chunked upload flow.
type Twitter struct {
	apiBase    string
	uploadBase string
	api        apiClient
}

func NewTwitter(cfg TwitterConfig) *Twitter {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTwitterAPI
	}
	if cfg.UploadBase == "" {
		cfg.UploadBase = DefaultTwitterUpload
	}
	client := cfg.Client
	if client == nil {
		config := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
		client = config.Client(context.Background(), oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	}
	return &Twitter{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		uploadBase: strings.TrimRight(cfg.UploadBase, "/"),
		api:        apiClient{platform: "twitter", http: client},
	}
}

func (t *Twitter) Name() string {
	return "twitter"
}

type tweetRequest struct {
	Text  string      `json:"text,omitempty"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (t *Twitter) Publish(ctx context.Context, post *Post) error {
	mediaIDs, err := t.uploadAll(ctx, post.Media)
	if err != nil {
		return err
	}

	req := tweetRequest{Text: truncateRunes(post.Text, twitterMaxRunes)}
	if len(mediaIDs) > 0 {
		req.Media = &tweetMedia{MediaIDs: mediaIDs}
	}

	var resp tweetResponse
	if err := t.api.doJSON(ctx, http.MethodPost, t.apiBase+"/2/tweets", nil, req, &resp); err != nil {
		return fmt.Errorf("create tweet: %w", err)
	}
	if resp.Data.ID == "" {
		return errors.New("create tweet: empty tweet id in response")
	}
	return nil
}

// uploadAll uploads attachments in order. A tweet carries either one video
// or up to four photos, so a video ends the list.
func (t *Twitter) uploadAll(ctx context.Context, media []Attachment) ([]string, error) {
	var ids []string
	for _, m := range media {
		if m.Kind == approval.MediaVideo || m.Kind == approval.MediaAnimation {
			id, err := t.uploadChunked(ctx, m)
			if err != nil {
				return nil, err
			}
			return []string{id}, nil
		}
		if len(ids) == twitterMaxPhotos {
			continue
		}
		id, err := t.uploadSimple(ctx, m)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type uploadResponse struct {
	MediaIDString  string          `json:"media_id_string"`
	ProcessingInfo *processingInfo `json:"processing_info,omitempty"`
}

type processingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	Error          *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (t *Twitter) uploadSimple(ctx context.Context, m Attachment) (string, error) {
	var resp uploadResponse
	if err := t.postMultipart(ctx, nil, m.Data, &resp); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if resp.MediaIDString == "" {
		return "", errors.New("upload media: empty media id in response")
	}
	return resp.MediaIDString, nil
}

func (t *Twitter) uploadChunked(ctx context.Context, m Attachment) (string, error) {
	var initResp uploadResponse
	err := t.postForm(ctx, url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.Itoa(len(m.Data))},
		"media_type":     {mimeOrDefault(m)},
		"media_category": {"tweet_video"},
	}, &initResp)
	if err != nil {
		return "", fmt.Errorf("upload init: %w", err)
	}
	mediaID := initResp.MediaIDString
	if mediaID == "" {
		return "", errors.New("upload init: empty media id in response")
	}

	for seg, off := 0, 0; off < len(m.Data); seg, off = seg+1, off+twitterChunkSize {
		end := min(off+twitterChunkSize, len(m.Data))
		fields := map[string]string{
			"command":       "APPEND",
			"media_id":      mediaID,
			"segment_index": strconv.Itoa(seg),
		}
		if err := t.postMultipart(ctx, fields, m.Data[off:end], nil); err != nil {
			return "", fmt.Errorf("upload append segment %d: %w", seg, err)
		}
	}

	var finResp uploadResponse
	if err := t.postForm(ctx, url.Values{"command": {"FINALIZE"}, "media_id": {mediaID}}, &finResp); err != nil {
		return "", fmt.Errorf("upload finalize: %w", err)
	}
	if err := t.awaitProcessing(ctx, mediaID, finResp.ProcessingInfo); err != nil {
		return "", err
	}
	return mediaID, nil
}

// awaitProcessing polls STATUS until the uploaded video is usable.
func (t *Twitter) awaitProcessing(ctx context.Context, mediaID string, info *processingInfo) error {
	for info != nil {
		switch info.State {
		case "succeeded":
			return nil
		case "failed":
			msg := "unknown error"
			if info.Error != nil {
				msg = info.Error.Message
			}
			return fmt.Errorf("media processing failed: %s", msg)
		}

		timer := time.NewTimer(time.Duration(info.CheckAfterSecs) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("media processing: %w", ctx.Err())
		case <-timer.C:
		}

		q := url.Values{"command": {"STATUS"}, "media_id": {mediaID}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.uploadURL()+"?"+q.Encode(), nil)
		if err != nil {
			return fmt.Errorf("build status request: %w", err)
		}
		var resp uploadResponse
		if err := t.api.do(req, &resp); err != nil {
			return fmt.Errorf("upload status: %w", err)
		}
		info = resp.ProcessingInfo
	}
	return nil
}

func (t *Twitter) postForm(ctx context.Context, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.api.do(req, out)
}

func (t *Twitter) postMultipart(ctx context.Context, fields map[string]string, data []byte, out any) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("media", "media")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write media: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL(), &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return t.api.do(req, out)
}

func (t *Twitter) uploadURL() string {
	return t.uploadBase + "/1.1/media/upload.json"
}

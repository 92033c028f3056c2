package publish

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	DefaultFarcasterAPI = "https://api.warpcast.com"
	farcasterMaxBytes   = 320
)

type FarcasterConfig struct {
	Token   string
	BaseURL string
	Client  *http.Client
}

// Farcaster posts casts through the Warpcast API. Casts can only embed URLs,
// so attachments are dropped and media-only posts are rejected.
type Farcaster struct {
	token   string
	baseURL string
	api     apiClient
}

func NewFarcaster(cfg FarcasterConfig) *Farcaster {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFarcasterAPI
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &Farcaster{
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		api:     apiClient{platform: "farcaster", http: cfg.Client},
	}
}

func (f *Farcaster) Name() string {
	return "farcaster"
}

type castRequest struct {
	Text   string   `json:"text"`
	Embeds []string `json:"embeds,omitempty"`
}

type castResponse struct {
	Result struct {
		Cast struct {
			Hash string `json:"hash"`
		} `json:"cast"`
	} `json:"result"`
}

func (f *Farcaster) Publish(ctx context.Context, post *Post) error {
	if post.Text == "" {
		if len(post.Media) > 0 {
			return ErrUnsupportedMedia
		}
		return ErrEmptyPost
	}

	var resp castResponse
	err := f.api.doJSON(ctx, http.MethodPost, f.baseURL+"/v2/casts", bearer(f.token),
		castRequest{Text: truncateBytes(post.Text, farcasterMaxBytes)}, &resp)
	if err != nil {
		return fmt.Errorf("create cast: %w", err)
	}
	if resp.Result.Cast.Hash == "" {
		return fmt.Errorf("create cast: empty cast hash in response")
	}
	return nil
}

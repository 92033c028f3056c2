package bot

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/crossposter/internal/approval"
)

func TestCandidateID_RoundTrip(t *testing.T) {
	id := CandidateID(-1001234567890, 42)
	if id != "-1001234567890:42" {
		t.Errorf("CandidateID = %q", id)
	}

	chatID, msgID, err := ParseCandidateID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chatID != -1001234567890 || msgID != 42 {
		t.Errorf("got (%d, %d), want (-1001234567890, 42)", chatID, msgID)
	}
}

func TestParseCandidateID_Invalid(t *testing.T) {
	for _, id := range []string{"", "123", "abc:1", "1:abc", "1:2:3"} {
		if _, _, err := ParseCandidateID(id); !errors.Is(err, errBadCandidateID) {
			t.Errorf("ParseCandidateID(%q) error = %v, want errBadCandidateID", id, err)
		}
	}
}

func TestHasTag(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"hello #topost", true},
		{"#topost", true},
		{"#ToPost shouting", true},
		{"great news #topost!", true},
		{"line one\n#topost", true},
		{"#topostings are different", false},
		{"no tag here", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HasTag(tt.text, "#topost"); got != tt.want {
			t.Errorf("HasTag(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}

	if HasTag("anything #topost", "") {
		t.Error("empty tag must never match")
	}
}

func TestStripTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello #topost", "hello"},
		{"#topost hello   world", "hello world"},
		{"title\n#topost\nbody", "title\nbody"},
		{"  #TOPOST.  ", ""},
		{"first\n\nsecond #topost", "first\n\nsecond"},
	}
	for _, tt := range tests {
		if got := StripTag(tt.in, "#topost"); got != tt.want {
			t.Errorf("StripTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractContent(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		content, ok := ExtractContent(&tele.Message{Text: "news #topost"}, "#topost")
		if !ok {
			t.Fatal("expected content")
		}
		if content.Text != "news" || len(content.Media) != 0 {
			t.Errorf("unexpected content: %+v", content)
		}
	})

	t.Run("photo caption", func(t *testing.T) {
		msg := &tele.Message{
			Caption: "#topost",
			Photo:   &tele.Photo{File: tele.File{FileID: "p1"}},
		}
		content, ok := ExtractContent(msg, "#topost")
		if !ok {
			t.Fatal("expected media-only content")
		}
		if content.Text != "" {
			t.Errorf("text = %q, want empty", content.Text)
		}
		want := approval.Media{Kind: approval.MediaPhoto, FileID: "p1", MimeType: "image/jpeg"}
		if len(content.Media) != 1 || content.Media[0] != want {
			t.Errorf("media = %+v, want %+v", content.Media, want)
		}
	})

	t.Run("animation keeps mime type", func(t *testing.T) {
		msg := &tele.Message{
			Caption:   "lol #topost",
			Animation: &tele.Animation{File: tele.File{FileID: "a1"}, MIME: "video/mp4"},
		}
		content, ok := ExtractContent(msg, "#topost")
		if !ok || len(content.Media) != 1 {
			t.Fatalf("unexpected content: %+v", content)
		}
		if content.Media[0].Kind != approval.MediaAnimation || content.Media[0].MimeType != "video/mp4" {
			t.Errorf("unexpected media: %+v", content.Media[0])
		}
	})

	t.Run("untagged", func(t *testing.T) {
		if _, ok := ExtractContent(&tele.Message{Text: "hi"}, "#topost"); ok {
			t.Error("expected untagged message to be skipped")
		}
	})

	t.Run("tag only", func(t *testing.T) {
		if _, ok := ExtractContent(&tele.Message{Text: "#topost"}, "#topost"); ok {
			t.Error("expected empty message to be skipped")
		}
	})

	t.Run("nil message", func(t *testing.T) {
		if _, ok := ExtractContent(nil, "#topost"); ok {
			t.Error("expected nil message to be skipped")
		}
	})
}

package bot

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"nuclight.org/crossposter/internal/approval"
)

func TestTrack(t *testing.T) {
	t.Run("tagged message gets a prompt", func(t *testing.T) {
		b, api, _ := newTestBot(t, 2)

		if err := b.track(taggedMessage(5, "hello world #topost")); err != nil {
			t.Fatalf("track failed: %v", err)
		}

		if len(api.sent) != 1 {
			t.Fatalf("sent %d messages, want 1", len(api.sent))
		}
		prompt := api.sent[0]
		if prompt.replyTo != 5 {
			t.Errorf("prompt replies to %d, want 5", prompt.replyTo)
		}
		if !prompt.markup {
			t.Error("expected prompt to carry the approve button")
		}
		if !strings.Contains(prompt.text, "Needed: 2 more reactions") {
			t.Errorf("unexpected prompt text: %q", prompt.text)
		}

		c, err := b.tracker.Get(CandidateID(testChatID, 5))
		if err != nil {
			t.Fatalf("candidate not tracked: %v", err)
		}
		if c.Content.Text != "hello world" {
			t.Errorf("content text = %q, want %q", c.Content.Text, "hello world")
		}
		if c.PromptID != 1001 {
			t.Errorf("PromptID = %d, want 1001", c.PromptID)
		}
	})

	t.Run("untagged message is ignored", func(t *testing.T) {
		b, api, _ := newTestBot(t, 2)

		if err := b.track(taggedMessage(5, "just chatting")); err != nil {
			t.Fatalf("track failed: %v", err)
		}
		if len(api.sent) != 0 {
			t.Errorf("sent %d messages, want 0", len(api.sent))
		}
		if b.tracker.Len() != 0 {
			t.Errorf("tracked %d candidates, want 0", b.tracker.Len())
		}
	})

	t.Run("tag-only message is ignored", func(t *testing.T) {
		b, api, _ := newTestBot(t, 2)

		if err := b.track(taggedMessage(6, "  #topost  ")); err != nil {
			t.Fatalf("track failed: %v", err)
		}
		if len(api.sent) != 0 {
			t.Errorf("sent %d messages, want 0", len(api.sent))
		}
		if _, err := b.tracker.Get(CandidateID(testChatID, 6)); !errors.Is(err, approval.ErrNotFound) {
			t.Errorf("Get err = %v, want ErrNotFound", err)
		}
	})

	t.Run("redelivered message keeps one prompt", func(t *testing.T) {
		b, api, _ := newTestBot(t, 2)
		msg := taggedMessage(5, "#topost again")

		for i := 0; i < 2; i++ {
			if err := b.track(msg); err != nil {
				t.Fatalf("track failed: %v", err)
			}
		}
		if len(api.sent) != 1 {
			t.Errorf("sent %d messages, want 1", len(api.sent))
		}
	})
}

func TestTrack_ConcurrentRedelivery(t *testing.T) {
	b, api, _ := newTestBot(t, 2)
	msg := taggedMessage(9, "#topost once")
	api.afterSend = func() { time.Sleep(10 * time.Millisecond) }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.track(msg); err != nil {
				t.Errorf("track failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(api.sentTexts()); got != 1 {
		t.Errorf("sent %d prompts, want 1", got)
	}
}

func TestTrack_VoteBeforePromptAttached(t *testing.T) {
	pub := &recordingPublisher{name: "twitter"}
	b, api, _ := newTestBot(t, 1, pub)
	id := CandidateID(testChatID, 8)

	// The press arrives while the prompt is being sent.
	api.afterSend = func() {
		answer, err := b.approve(id, 1)
		if err != nil || answer != MsgCrosspostStarted {
			t.Errorf("early vote: got (%q, %v), want %q", answer, err, MsgCrosspostStarted)
		}
	}

	if err := b.track(taggedMessage(8, "fast #topost")); err != nil {
		t.Fatalf("track failed: %v", err)
	}
	b.Wait()

	edit, ok := api.lastEdit()
	if !ok {
		t.Fatal("expected the prompt to be edited after attaching")
	}
	if edit.messageID != "1001" || !strings.Contains(edit.text, "cross-posted") || edit.markup {
		t.Errorf("unexpected prompt edit: %+v", edit)
	}
	if len(pub.published()) != 1 {
		t.Errorf("published %d posts, want 1", len(pub.published()))
	}
}

func TestApprove_PublishFlow(t *testing.T) {
	pub := &recordingPublisher{name: "farcaster"}
	b, api, _ := newTestBot(t, 2, pub)
	if err := b.track(taggedMessage(7, "ship it #topost")); err != nil {
		t.Fatalf("track failed: %v", err)
	}
	id := CandidateID(testChatID, 7)

	answer, err := b.approve(id, 1)
	if err != nil || answer != MsgVoteCounted {
		t.Fatalf("first vote: got (%q, %v), want %q", answer, err, MsgVoteCounted)
	}
	edit, ok := api.lastEdit()
	if !ok {
		t.Fatal("expected prompt to be edited")
	}
	if !strings.Contains(edit.text, "Needed: 1 more reaction") || strings.Contains(edit.text, "reactions") {
		t.Errorf("unexpected progress text: %q", edit.text)
	}
	if !edit.markup {
		t.Error("pending prompt lost its button")
	}
	if edit.messageID != strconv.Itoa(1001) || edit.chatID != testChatID {
		t.Errorf("edited %s in %d, want 1001 in %d", edit.messageID, edit.chatID, testChatID)
	}

	if answer, _ := b.approve(id, 1); answer != MsgAlreadyVoted {
		t.Errorf("repeat vote: got %q, want %q", answer, MsgAlreadyVoted)
	}

	answer, err = b.approve(id, 2)
	if err != nil || answer != MsgCrosspostStarted {
		t.Fatalf("second vote: got (%q, %v), want %q", answer, err, MsgCrosspostStarted)
	}
	b.Wait()

	edit, _ = api.lastEdit()
	if !strings.Contains(edit.text, "cross-posted") {
		t.Errorf("unexpected final prompt: %q", edit.text)
	}
	if edit.markup {
		t.Error("published prompt should have no button")
	}

	posts := pub.published()
	if len(posts) != 1 {
		t.Fatalf("published %d posts, want 1", len(posts))
	}
	if posts[0].Text != "ship it" {
		t.Errorf("post text = %q, want %q", posts[0].Text, "ship it")
	}

	texts := api.sentTexts()
	if !containsAny(texts, MsgCrosspostInitiated) {
		t.Error("expected initiation notice")
	}
	if !containsAny(texts, "Crosspost Report") || !containsAny(texts, "✅ Farcaster") {
		t.Errorf("expected report, got %q", texts)
	}

	if answer, _ := b.approve(id, 3); answer != MsgVotingClosed {
		t.Errorf("late vote: got %q, want %q", answer, MsgVotingClosed)
	}
	if len(pub.published()) != 1 {
		t.Error("late vote triggered another publish")
	}
}

func TestApprove_NotFound(t *testing.T) {
	b, _, _ := newTestBot(t, 2)

	answer, err := b.approve(CandidateID(testChatID, 99), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != MsgNotTracked {
		t.Errorf("got %q, want %q", answer, MsgNotTracked)
	}
}

func TestApprove_Expired(t *testing.T) {
	b, api, clock := newTestBot(t, 2)
	if err := b.track(taggedMessage(3, "#topost late")); err != nil {
		t.Fatalf("track failed: %v", err)
	}
	id := CandidateID(testChatID, 3)

	clock.Advance(time.Hour)

	answer, err := b.approve(id, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != MsgVotingExpired {
		t.Errorf("got %q, want %q", answer, MsgVotingExpired)
	}

	edit, ok := api.lastEdit()
	if !ok || !strings.Contains(edit.text, "expired") || edit.markup {
		t.Errorf("expected expired prompt without button, got %+v", edit)
	}

	c, _ := b.tracker.Get(id)
	if c.Status != approval.StatusExpired {
		t.Errorf("status = %s, want expired", c.Status)
	}
}

func TestPendingText(t *testing.T) {
	b, _, _ := newTestBot(t, 3)
	for i, text := range []string{"first post #topost", "second post #topost"} {
		if err := b.track(taggedMessage(i+1, text)); err != nil {
			t.Fatalf("track failed: %v", err)
		}
	}
	other := taggedMessage(1, "elsewhere #topost")
	other.Chat.ID = 777
	if err := b.track(other); err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if _, err := b.approve(CandidateID(testChatID, 1), 10); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	text, err := b.pendingText(testChatID)
	if err != nil {
		t.Fatalf("pendingText failed: %v", err)
	}
	for _, want := range []string{"1. first post (1/3", "2. second post (0/3", "expires 13:00 UTC"} {
		if !strings.Contains(text, want) {
			t.Errorf("pending text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "elsewhere") {
		t.Error("pending list leaked a candidate from another chat")
	}

	_, err = b.pendingText(12345)
	if err == nil || GetUserMessage(err) != MsgNothingPending {
		t.Errorf("expected %q, got %v", MsgNothingPending, err)
	}
	if ShouldLog(err) {
		t.Error("empty pending list should not be logged")
	}
}

func TestDeliveriesText(t *testing.T) {
	t.Run("log disabled", func(t *testing.T) {
		b, _, _ := newTestBot(t, 2)

		_, err := b.deliveriesText()
		if GetUserMessage(err) != MsgDeliveryLogDisabled {
			t.Errorf("expected %q, got %v", MsgDeliveryLogDisabled, err)
		}
		if ShouldLog(err) {
			t.Error("disabled log is a user mistake and should not be logged")
		}
	})

	t.Run("counts per platform", func(t *testing.T) {
		b, _, clock := newTestBot(t, 2,
			&recordingPublisher{name: "twitter"},
			&recordingPublisher{name: "bluesky"},
		)
		log := &recordingDeliveries{failures: map[string]int{"bluesky": 2, "farcaster": 1}}
		b.deliveries = log

		text, err := b.deliveriesText()
		if err != nil {
			t.Fatalf("deliveriesText failed: %v", err)
		}

		if want := clock.Now().Add(-24 * time.Hour); !log.since.Equal(want) {
			t.Errorf("since = %s, want %s", log.since, want)
		}

		lines := []string{"last 24h", "✅ Twitter: no failures", "❌ Bluesky: 2 failed", "❌ Farcaster: 1 failed"}
		last := -1
		for _, want := range lines {
			idx := strings.Index(text, want)
			if idx < 0 {
				t.Errorf("missing %q in:\n%s", want, text)
				continue
			}
			if idx < last {
				t.Errorf("%q is out of order in:\n%s", want, text)
			}
			last = idx
		}
	})

	t.Run("storage error", func(t *testing.T) {
		b, _, _ := newTestBot(t, 2)
		b.deliveries = &recordingDeliveries{err: errors.New("database is locked")}

		_, err := b.deliveriesText()
		if GetUserMessage(err) != MsgFailedLoadDelivery {
			t.Errorf("expected %q, got %v", MsgFailedLoadDelivery, err)
		}
		if !ShouldLog(err) {
			t.Error("storage failures should be logged")
		}
	})
}

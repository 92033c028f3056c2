package approval

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusPublished || s == StatusExpired
}

type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAnimation MediaKind = "animation"
)

// Media is a reference to an attachment held by the inbound channel.
// The bytes are fetched only when the candidate is published.
type Media struct {
	Kind     MediaKind
	FileID   string
	MimeType string
}

type Content struct {
	Text  string
	Media []Media
}

type Candidate struct {
	ID          string
	PromptID    int // message carrying the approval button, 0 if not sent yet
	Content     Content
	CreatedAt   time.Time
	Status      Status
	FinalizedAt time.Time

	voters map[int64]struct{}
}

// VoteCount returns the number of distinct voters.
func (c Candidate) VoteCount() int {
	return len(c.voters)
}

// HasVoted reports whether the voter has already been counted.
func (c Candidate) HasVoted(voterID int64) bool {
	_, ok := c.voters[voterID]
	return ok
}

// Voters returns the voter IDs in no particular order.
func (c Candidate) Voters() []int64 {
	ids := make([]int64, 0, len(c.voters))
	for id := range c.voters {
		ids = append(ids, id)
	}
	return ids
}

// ExpiresAt is the first instant at which the candidate no longer accepts reactions.
func (c Candidate) ExpiresAt(window time.Duration) time.Time {
	return c.CreatedAt.Add(window)
}

// snapshot returns a deep copy safe to hand out of the tracker.
func (c *Candidate) snapshot() Candidate {
	cp := *c
	cp.voters = make(map[int64]struct{}, len(c.voters))
	for id := range c.voters {
		cp.voters[id] = struct{}{}
	}
	cp.Content.Media = append([]Media(nil), c.Content.Media...)
	return cp
}

package approval

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	DefaultRequiredReactions = 7
	DefaultExpirationWindow  = 2 * time.Hour
)

type Config struct {
	RequiredReactions int
	ExpirationWindow  time.Duration
	// Retention is how long a finalized candidate stays queryable before Evict drops it.
	Retention time.Duration
}

// DefaultConfig returns the stock threshold and window.
func DefaultConfig() Config {
	return Config{
		RequiredReactions: DefaultRequiredReactions,
		ExpirationWindow:  DefaultExpirationWindow,
		Retention:         DefaultExpirationWindow,
	}
}

// TransitionFunc is called once for every Pending→terminal transition,
// after the tracker lock has been released.
type TransitionFunc func(c Candidate, from Status)

// Tracker owns the candidate map. All methods are safe for concurrent use;
// mutations are serialized so a candidate reaches the threshold exactly once.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	candidates map[string]*Candidate
	hooks      []TransitionFunc
}

func NewTracker(cfg Config, logger *slog.Logger) (*Tracker, error) {
	if cfg.RequiredReactions < 1 {
		return nil, fmt.Errorf("%w: required reactions must be positive, got %d", ErrInvalidConfig, cfg.RequiredReactions)
	}
	if cfg.ExpirationWindow <= 0 {
		return nil, fmt.Errorf("%w: expiration window must be positive, got %s", ErrInvalidConfig, cfg.ExpirationWindow)
	}
	if cfg.Retention < 0 {
		return nil, fmt.Errorf("%w: retention must not be negative, got %s", ErrInvalidConfig, cfg.Retention)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:        cfg,
		logger:     logger,
		candidates: make(map[string]*Candidate),
	}, nil
}

func (t *Tracker) Config() Config {
	return t.cfg
}

// OnTransition registers fn to observe Published and Expired transitions.
func (t *Tracker) OnTransition(fn TransitionFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// RecordCandidate starts tracking id. Re-registering a known id returns the
// existing record unchanged: the clock and voter set are never reset.
func (t *Tracker) RecordCandidate(id string, content Content, ts time.Time) Candidate {
	c, _ := t.Track(id, content, ts)
	return c
}

// Track is RecordCandidate that also reports whether this call created the
// candidate. Exactly one of any number of concurrent calls for an id sees true.
func (t *Tracker) Track(id string, content Content, ts time.Time) (Candidate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.candidates[id]; ok {
		t.logger.Debug("candidate already tracked", "candidate_id", id, "status", c.Status)
		return c.snapshot(), false
	}

	c := &Candidate{
		ID:        id,
		Content:   content,
		CreatedAt: ts,
		Status:    StatusPending,
		voters:    make(map[int64]struct{}),
	}
	c.Content.Media = append([]Media(nil), content.Media...)
	t.candidates[id] = c

	t.logger.Info("candidate tracked",
		"candidate_id", id,
		"media", len(content.Media),
		"expires_at", c.ExpiresAt(t.cfg.ExpirationWindow).Format(time.RFC3339),
	)
	return c.snapshot(), true
}

// AttachPrompt remembers the message carrying the approval button and returns
// the candidate as it stands. The prompt is recorded in any state, so a caller
// whose candidate was finalized before the prompt was attached can still
// update it.
func (t *Tracker) AttachPrompt(id string, promptID int) (Candidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.candidates[id]
	if !ok {
		return Candidate{}, fmt.Errorf("attach prompt %q: %w", id, ErrNotFound)
	}
	c.PromptID = promptID
	return c.snapshot(), nil
}

// RecordReaction applies one approval from voterID. Reactions are applied in
// call order; ts only decides validity and expiry.
func (t *Tracker) RecordReaction(id string, voterID int64, ts time.Time) (ReactionOutcome, error) {
	t.mu.Lock()

	c, ok := t.candidates[id]
	if !ok {
		t.mu.Unlock()
		return ReactionOutcome{}, fmt.Errorf("record reaction on %q: %w", id, ErrNotFound)
	}

	if c.Status.IsTerminal() {
		out := ignored(c, ReasonAlreadyFinalized)
		t.mu.Unlock()
		return out, nil
	}

	if ts.Before(c.CreatedAt) {
		out := ignored(c, ReasonInvalidTimestamp)
		t.mu.Unlock()
		return out, nil
	}

	if !ts.Before(c.ExpiresAt(t.cfg.ExpirationWindow)) {
		c.Status = StatusExpired
		c.FinalizedAt = ts
		out := ignored(c, ReasonExpired)
		hooks := t.hooks
		t.mu.Unlock()
		t.transitioned(hooks, out.Candidate, StatusPending)
		return out, nil
	}

	if c.HasVoted(voterID) {
		out := ignored(c, ReasonDuplicateVoter)
		t.mu.Unlock()
		return out, nil
	}

	c.voters[voterID] = struct{}{}
	count := len(c.voters)

	if count < t.cfg.RequiredReactions {
		out := ReactionOutcome{Kind: OutcomeRecorded, Count: count, Candidate: c.snapshot()}
		t.mu.Unlock()
		return out, nil
	}

	c.Status = StatusPublished
	c.FinalizedAt = ts
	out := ReactionOutcome{Kind: OutcomeThresholdReached, Count: count, Candidate: c.snapshot()}
	hooks := t.hooks
	t.mu.Unlock()

	t.transitioned(hooks, out.Candidate, StatusPending)
	return out, nil
}

// SweepExpired expires every pending candidate whose window has elapsed at now
// and returns them. Candidates are ordered by creation time.
func (t *Tracker) SweepExpired(now time.Time) []Candidate {
	t.mu.Lock()
	var expired []Candidate
	for _, c := range t.candidates {
		if c.Status != StatusPending {
			continue
		}
		if now.Before(c.ExpiresAt(t.cfg.ExpirationWindow)) {
			continue
		}
		c.Status = StatusExpired
		c.FinalizedAt = now
		expired = append(expired, c.snapshot())
	}
	hooks := t.hooks
	t.mu.Unlock()

	sortByCreation(expired)
	for _, c := range expired {
		t.transitioned(hooks, c, StatusPending)
	}
	return expired
}

// Evict drops finalized candidates whose retention period has passed and
// returns how many were removed. Pending candidates are never evicted.
func (t *Tracker) Evict(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, c := range t.candidates {
		if !c.Status.IsTerminal() {
			continue
		}
		if now.Before(c.FinalizedAt.Add(t.cfg.Retention)) {
			continue
		}
		delete(t.candidates, id)
		removed++
	}
	if removed > 0 {
		t.logger.Debug("evicted finalized candidates", "count", removed, "remaining", len(t.candidates))
	}
	return removed
}

func (t *Tracker) Get(id string) (Candidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.candidates[id]
	if !ok {
		return Candidate{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return c.snapshot(), nil
}

// Pending returns a snapshot of all pending candidates, oldest first.
func (t *Tracker) Pending() []Candidate {
	t.mu.Lock()
	var pending []Candidate
	for _, c := range t.candidates {
		if c.Status == StatusPending {
			pending = append(pending, c.snapshot())
		}
	}
	t.mu.Unlock()

	sortByCreation(pending)
	return pending
}

// Len returns the number of tracked candidates in any state.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.candidates)
}

func (t *Tracker) transitioned(hooks []TransitionFunc, c Candidate, from Status) {
	switch c.Status {
	case StatusPublished:
		t.logger.Info("candidate published",
			"candidate_id", c.ID,
			"from", from,
			"voters", c.VoteCount(),
			"age", c.FinalizedAt.Sub(c.CreatedAt).Round(time.Second),
		)
	case StatusExpired:
		t.logger.Info("candidate expired",
			"candidate_id", c.ID,
			"from", from,
			"voters", c.VoteCount(),
		)
	}
	for _, fn := range hooks {
		fn(c, from)
	}
}

func ignored(c *Candidate, reason IgnoreReason) ReactionOutcome {
	return ReactionOutcome{
		Kind:      OutcomeIgnored,
		Reason:    reason,
		Count:     len(c.voters),
		Candidate: c.snapshot(),
	}
}

func sortByCreation(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID < cs[j].ID
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}

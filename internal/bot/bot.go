package bot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/crossposter/internal/approval"
	"nuclight.org/crossposter/internal/publish"
)

// telegramAPI is the subset of *tele.Bot used outside of handler contexts.
type telegramAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	File(file *tele.File) (io.ReadCloser, error)
}

// DeliveryLog persists dispatch results and reports recent failures.
type DeliveryLog interface {
	RecordDispatch(c approval.Candidate, d *publish.Dispatch) error
	CountFailures(since time.Time) (map[string]int, error)
}

// Observer receives operational events for metrics.
type Observer interface {
	CandidateTracked()
	ObserveReaction(out approval.ReactionOutcome)
	ObserveDispatch(d *publish.Dispatch)
}

type nopObserver struct{}

func (nopObserver) CandidateTracked()                        {}
func (nopObserver) ObserveReaction(approval.ReactionOutcome) {}
func (nopObserver) ObserveDispatch(*publish.Dispatch)        {}

type Options struct {
	Tracker    *approval.Tracker
	Dispatcher *publish.Dispatcher
	Deliveries DeliveryLog // optional
	Observer   Observer    // optional
	PostTag    string
}

type Bot struct {
	bot        *tele.Bot
	api        telegramAPI
	tracker    *approval.Tracker
	dispatcher *publish.Dispatcher
	deliveries DeliveryLog
	observer   Observer
	tag        string
	logger     *slog.Logger
	now        func() time.Time

	// ctx bounds background cross-posts; replaced by Start.
	ctx      context.Context
	inflight sync.WaitGroup
}

func New(token string, opts Options, logger *slog.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Error("telegram handler failed", "error", err)
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	b := newBot(tb, opts, logger)
	b.bot = tb
	return b, nil
}

func newBot(api telegramAPI, opts Options, logger *slog.Logger) *Bot {
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Bot{
		api:        api,
		tracker:    opts.Tracker,
		dispatcher: opts.Dispatcher,
		deliveries: opts.Deliveries,
		observer:   observer,
		tag:        opts.PostTag,
		logger:     logger,
		now:        time.Now,
		ctx:        context.Background(),
	}
}

// Start polls for updates until ctx is cancelled. Cross-posts still in
// flight are cancelled together with ctx.
func (b *Bot) Start(ctx context.Context) {
	b.ctx = ctx
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()

	b.logger.Info("bot started", "username", b.bot.Me.Username, "tag", b.tag)
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

// Wait blocks until every cross-post started by a reaction has finished.
func (b *Bot) Wait() {
	b.inflight.Wait()
}

func (b *Bot) Bot() *tele.Bot {
	return b.bot
}

func (b *Bot) Tracker() *approval.Tracker {
	return b.tracker
}

func (b *Bot) Logger() *slog.Logger {
	return b.logger
}

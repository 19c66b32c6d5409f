package intake

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/intakebot/core/logger"
)

// Notifier delivers finished records and supplementary messages downstream.
// Both calls are best-effort; the flow logs and swallows failures.
type Notifier interface {
	Notify(ctx context.Context, rec Record) error
	NotifySupplementary(ctx context.Context, msg Supplementary) error
}

// Releaser frees the underlying resource behind an attachment reference
// once the record that referenced it has been dispatched.
type Releaser interface {
	Release(ctx context.Context, ref string) error
}

// Archiver persists finished output for later review. Optional; a nil
// archiver disables archiving without affecting the conversation.
type Archiver interface {
	SaveRecord(ctx context.Context, rec Record) error
	SaveSupplementary(ctx context.Context, msg Supplementary) error
}

// Keyboard tells the transport which reply markup to attach, if any.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardLanguages
)

// Reply is one outbound message directive, delivered in order.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// EnqueueFunc hands a side effect off for asynchronous execution. The run
// closure never returns an error worth retrying: failures are logged inside.
type EnqueueFunc func(ctx context.Context, action string, run func() error)

// Config assembles a Machine. Store and Table default when nil; Enqueue
// defaults to inline execution.
type Config struct {
	Store    *Store
	Table    *Table
	Notifier Notifier
	Releaser Releaser
	Archiver Archiver
	Enqueue  EnqueueFunc
}

// Machine advances per-user sessions deterministically in response to
// inbound events and triggers the fire-and-forget side effects of the
// finish procedure. All transitions are in-memory and non-blocking.
type Machine struct {
	store    *Store
	table    *Table
	notifier Notifier
	releaser Releaser
	archiver Archiver
	enqueue  EnqueueFunc
}

// NewMachine constructs a conversation state machine.
func NewMachine(cfg Config) *Machine {
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.Table == nil {
		cfg.Table = DefaultTable()
	}
	m := &Machine{
		store:    cfg.Store,
		table:    cfg.Table,
		notifier: cfg.Notifier,
		releaser: cfg.Releaser,
		archiver: cfg.Archiver,
		enqueue:  cfg.Enqueue,
	}
	if m.enqueue == nil {
		m.enqueue = func(_ context.Context, _ string, run func() error) { _ = run() }
	}
	return m
}

// Store exposes the session store for retention sweeps.
func (m *Machine) Store() *Store {
	return m.store
}

// OnStart resets the user's session and prompts for a language, regardless
// of prior state.
func (m *Machine) OnStart(ctx context.Context, userID int64) []Reply {
	m.store.Reset(userID)
	logger.Debug(ctx, "intake", "flow.start",
		slog.Int64("user_id", userID),
	)
	return []Reply{{
		Text:     m.table.Resolve(DefaultLanguage, PromptLanguageChoice),
		Keyboard: KeyboardLanguages,
	}}
}

// OnText advances the session with a free-text event. A recognized language
// word switches the session language from any pre-finish step; otherwise the
// text populates the first unset field in order name, phone, description.
func (m *Machine) OnText(ctx context.Context, userID int64, text string) []Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sess := m.store.Get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Finished {
		return m.supplementaryLocked(ctx, sess, text)
	}

	if lang, ok := ParseLanguage(text); ok {
		sess.Language = lang
		logger.Debug(ctx, "intake", "flow.language",
			slog.Int64("user_id", userID),
			slog.String("lang", string(lang)),
		)
		return []Reply{{Text: m.table.Resolve(lang, PromptAskName)}}
	}

	lang := sess.language()
	switch {
	case sess.Name == "":
		sess.Name = text
		return []Reply{{Text: m.table.Resolve(lang, PromptAskPhone)}}
	case sess.Phone == "":
		sess.Phone = text
		return []Reply{{Text: m.table.Resolve(lang, PromptAskDescription)}}
	case sess.Description == "":
		sess.Description = text
		sess.Photos = []string{}
		return []Reply{{Text: m.table.Resolve(lang, PromptPhotoHint)}}
	}

	// Text while waiting for photos carries no field to fill.
	logger.Debug(ctx, "intake", "flow.text.ignored",
		slog.Int64("user_id", userID),
		slog.String("step", sess.step().String()),
	)
	return nil
}

// OnPhoto appends an attachment reference when the session is collecting
// photos; in any other step the event is silently ignored.
func (m *Machine) OnPhoto(ctx context.Context, userID int64, ref string) []Reply {
	sess := m.store.Get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Finished || sess.Description == "" {
		logger.Debug(ctx, "intake", "flow.photo.ignored",
			slog.Int64("user_id", userID),
			slog.String("step", sess.step().String()),
		)
		return nil
	}

	sess.Photos = append(sess.Photos, ref)
	logger.Info(ctx, "intake", "flow.photo",
		slog.Int64("user_id", userID),
		slog.Int("photos", len(sess.Photos)),
	)
	return []Reply{{Text: m.table.Resolve(sess.language(), PromptPhotoAck)}}
}

// OnSkip triggers the finish procedure when the description has been
// captured; before that, and after finish, it is a no-op.
func (m *Machine) OnSkip(ctx context.Context, userID int64) []Reply {
	sess := m.store.Get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Finished || sess.Description == "" {
		logger.Debug(ctx, "intake", "flow.skip.ignored",
			slog.Int64("user_id", userID),
			slog.String("step", sess.step().String()),
		)
		return nil
	}

	return m.finishLocked(ctx, sess)
}

// finishLocked snapshots the session into a Record, marks it finished, and
// hands the downstream work (notification, attachment release, archive) to
// the enqueue hook. The user-visible confirmation never waits on, or fails
// with, the side effects.
func (m *Machine) finishLocked(ctx context.Context, sess *Session) []Reply {
	lang := sess.language()
	rec := Record{
		ID:          uuid.NewString(),
		UserID:      sess.UserID,
		Name:        sess.Name,
		Phone:       sess.Phone,
		Description: sess.Description,
		Language:    lang,
		Attachments: append([]string(nil), sess.Photos...),
		ReceivedAt:  time.Now().UTC(),
	}
	sess.Finished = true
	sess.FinishedAt = time.Now()

	logger.Info(ctx, "intake", "flow.finish",
		slog.Int64("user_id", sess.UserID),
		slog.String("record_id", rec.ID),
		slog.String("lang", string(lang)),
		slog.Int("photos", len(rec.Attachments)),
	)

	m.enqueue(ctx, "record.dispatch", func() error {
		m.dispatchRecord(ctx, rec)
		return nil
	})

	return []Reply{
		{Text: m.table.Resolve(lang, PromptConfirmation)},
		{Text: m.table.Resolve(lang, PromptExtraInfoHint)},
	}
}

// dispatchRecord runs the downstream leg of the finish procedure. Release
// happens after notification so attachment files are still readable when
// the mail is composed; every failure is logged and swallowed.
func (m *Machine) dispatchRecord(ctx context.Context, rec Record) {
	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, rec); err != nil {
			logger.Error(ctx, "intake", "notify.fail",
				slog.String("record_id", rec.ID),
				slog.String("err", err.Error()),
			)
		}
	}
	if m.archiver != nil {
		if err := m.archiver.SaveRecord(ctx, rec); err != nil {
			logger.Error(ctx, "intake", "archive.fail",
				slog.String("record_id", rec.ID),
				slog.String("err", err.Error()),
			)
		}
	}
	if m.releaser != nil {
		for _, ref := range rec.Attachments {
			if err := m.releaser.Release(ctx, ref); err != nil {
				logger.Warn(ctx, "intake", "release.fail",
					slog.String("photo", ref),
					slog.String("err", err.Error()),
				)
			}
		}
	}
}

func (m *Machine) supplementaryLocked(ctx context.Context, sess *Session, text string) []Reply {
	msg := Supplementary{
		ID:         uuid.NewString(),
		UserID:     sess.UserID,
		Name:       sess.Name,
		Phone:      sess.Phone,
		Text:       text,
		Language:   sess.language(),
		ReceivedAt: time.Now().UTC(),
	}

	logger.Info(ctx, "intake", "flow.supplementary",
		slog.Int64("user_id", sess.UserID),
		slog.String("record_id", msg.ID),
	)

	m.enqueue(ctx, "supplementary.dispatch", func() error {
		if m.notifier != nil {
			if err := m.notifier.NotifySupplementary(ctx, msg); err != nil {
				logger.Error(ctx, "intake", "notify.supplementary.fail",
					slog.String("record_id", msg.ID),
					slog.String("err", err.Error()),
				)
			}
		}
		if m.archiver != nil {
			if err := m.archiver.SaveSupplementary(ctx, msg); err != nil {
				logger.Error(ctx, "intake", "archive.supplementary.fail",
					slog.String("record_id", msg.ID),
					slog.String("err", err.Error()),
				)
			}
		}
		return nil
	})

	return []Reply{{Text: m.table.Resolve(msg.Language, PromptPostFinishAck)}}
}

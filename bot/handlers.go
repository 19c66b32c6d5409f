package bot

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/intakebot/core/logger"
	tghelpers "github.com/m3rciful/intakebot/core/telegram/helpers"
	"github.com/m3rciful/intakebot/core/telegram/keyboard"
	"github.com/m3rciful/intakebot/intake"
)

func (a *App) handleStart(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return a.sendReplies(c, a.machine.OnStart(ctx, user.ID))
}

func (a *App) handleSkip(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return a.sendReplies(c, a.machine.OnSkip(ctx, user.ID))
}

func (a *App) handleText(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return a.sendReplies(c, a.machine.OnText(ctx, user.ID, c.Text()))
}

func (a *App) handlePhoto(c tele.Context) error {
	user := c.Sender()
	msg := c.Message()
	if user == nil || msg == nil || msg.Photo == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	// The flow only accepts photos while collecting them; skip the download
	// entirely for any other step.
	if step := a.machine.Store().Get(user.ID).Step(); step != intake.StepPhotos {
		logger.Debug(ctx, "photos", "photo.skip",
			slog.Int64("user_id", user.ID),
			slog.String("step", step.String()),
		)
		return nil
	}

	rc, err := c.Bot().File(&msg.Photo.File)
	if err != nil {
		logger.Warn(ctx, "photos", "photo.download_failed",
			slog.Int64("user_id", user.ID),
			slog.String("err", err.Error()),
		)
		return nil
	}
	defer rc.Close()

	ref, err := a.photos.Save(ctx, user.ID, rc)
	if err != nil {
		logger.Warn(ctx, "photos", "photo.save_failed",
			slog.Int64("user_id", user.ID),
			slog.String("err", err.Error()),
		)
		return nil
	}

	return a.sendReplies(c, a.ingestPhoto(ctx, user.ID, ref))
}

// ingestPhoto hands a spooled photo to the flow. If the flow rejects it
// (the step changed between the pre-check and now), the spool file is
// removed immediately so nothing keeps growing the photo directory.
func (a *App) ingestPhoto(ctx context.Context, userID int64, ref string) []intake.Reply {
	replies := a.machine.OnPhoto(ctx, userID, ref)
	if len(replies) == 0 {
		if err := a.photos.Release(ctx, ref); err != nil {
			logger.Warn(ctx, "photos", "photo.orphan_release_failed",
				slog.String("photo", ref),
				slog.String("err", err.Error()),
			)
		}
	}
	return replies
}

// sendReplies delivers flow replies as one ordered batch.
func (a *App) sendReplies(c tele.Context, replies []intake.Reply) error {
	if len(replies) == 0 {
		return nil
	}
	sends := make([]func() error, len(replies))
	for i, r := range replies {
		r := r
		sends[i] = func() error { return sendReply(c, r) }
	}
	return tghelpers.SendOrdered(c, sends...)
}

func sendReply(c tele.Context, r intake.Reply) error {
	switch r.Keyboard {
	case intake.KeyboardLanguages:
		return c.Send(r.Text, &tele.SendOptions{ReplyMarkup: languageKeyboard()})
	default:
		return c.Send(r.Text)
	}
}

func languageKeyboard() *tele.ReplyMarkup {
	labels := make([]string, len(intake.Languages))
	for i, lang := range intake.Languages {
		labels[i] = string(lang)
	}
	markup := keyboard.OneColumn(labels...)
	markup.OneTimeKeyboard = true
	return markup
}

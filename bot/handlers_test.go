package bot

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/m3rciful/intakebot/core/outbound"
	"github.com/m3rciful/intakebot/intake"
	"github.com/m3rciful/intakebot/photostore"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	photos, err := photostore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := &App{
		photos:     photos,
		dispatcher: outbound.NewDispatcher(outbound.Options{QueueSize: 8, Workers: 1}),
	}
	t.Cleanup(a.dispatcher.Close)
	a.machine = intake.NewMachine(intake.Config{Releaser: photos})
	return a
}

func advanceToPhotos(t *testing.T, a *App, userID int64) {
	t.Helper()
	ctx := context.Background()
	a.machine.OnStart(ctx, userID)
	a.machine.OnText(ctx, userID, "English")
	a.machine.OnText(ctx, userID, "John Doe")
	a.machine.OnText(ctx, userID, "+1 555 0100")
	a.machine.OnText(ctx, userID, "gearbox makes a grinding noise")
	if step := a.machine.Store().Get(userID).Step(); step != intake.StepPhotos {
		t.Fatalf("step = %v, want photos", step)
	}
}

func TestIngestPhotoReleasesRejectedSpoolFile(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	// Session is still at the language step; the flow must reject the photo
	// and the spool file must not outlive the rejection.
	ref, err := a.photos.Save(ctx, 7, strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatal(err)
	}

	replies := a.ingestPhoto(ctx, 7, ref)
	if len(replies) != 0 {
		t.Fatalf("replies = %v, want none", replies)
	}
	if _, err := os.Stat(ref); !os.IsNotExist(err) {
		t.Errorf("rejected spool file still present: %v", err)
	}
}

func TestIngestPhotoAfterFinishReleasesSpoolFile(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	advanceToPhotos(t, a, 7)
	a.machine.OnSkip(ctx, 7)

	ref, err := a.photos.Save(ctx, 7, strings.NewReader("late-photo"))
	if err != nil {
		t.Fatal(err)
	}
	if replies := a.ingestPhoto(ctx, 7, ref); len(replies) != 0 {
		t.Fatalf("replies = %v, want none after finish", replies)
	}
	if _, err := os.Stat(ref); !os.IsNotExist(err) {
		t.Errorf("post-finish spool file still present: %v", err)
	}
}

func TestIngestPhotoKeepsAcceptedSpoolFile(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	advanceToPhotos(t, a, 7)

	ref, err := a.photos.Save(ctx, 7, strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatal(err)
	}

	replies := a.ingestPhoto(ctx, 7, ref)
	if len(replies) == 0 {
		t.Fatal("photo not accepted at the photos step")
	}
	if _, err := os.Stat(ref); err != nil {
		t.Errorf("accepted spool file missing: %v", err)
	}

	sess := a.machine.Store().Get(7)
	if sess.Step() != intake.StepPhotos {
		t.Errorf("step = %v, want photos", sess.Step())
	}
}

package intake

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeNotifier struct {
	mu          sync.Mutex
	records     []Record
	supplements []Supplementary
	err         error
}

func (f *fakeNotifier) Notify(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

func (f *fakeNotifier) NotifySupplementary(_ context.Context, msg Supplementary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.supplements = append(f.supplements, msg)
	return f.err
}

type fakeReleaser struct {
	mu       sync.Mutex
	released []string
	err      error
}

func (f *fakeReleaser) Release(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, ref)
	return f.err
}

func newTestMachine(t *testing.T) (*Machine, *fakeNotifier, *fakeReleaser) {
	t.Helper()
	notifier := &fakeNotifier{}
	releaser := &fakeReleaser{}
	m := NewMachine(Config{Notifier: notifier, Releaser: releaser})
	return m, notifier, releaser
}

func texts(replies []Reply) []string {
	out := make([]string, 0, len(replies))
	for _, r := range replies {
		out = append(out, r.Text)
	}
	return out
}

func runIntake(ctx context.Context, m *Machine, userID int64) {
	m.OnStart(ctx, userID)
	m.OnText(ctx, userID, "English")
	m.OnText(ctx, userID, "Jane")
	m.OnText(ctx, userID, "+1555123456")
	m.OnText(ctx, userID, "Leaking brake line")
}

func TestHappyPathWithoutPhotos(t *testing.T) {
	ctx := context.Background()
	m, notifier, _ := newTestMachine(t)

	replies := m.OnStart(ctx, 1)
	if len(replies) != 1 || replies[0].Keyboard != KeyboardLanguages {
		t.Fatalf("start replies = %+v, want language prompt with keyboard", replies)
	}

	replies = m.OnText(ctx, 1, "English")
	if got := texts(replies); len(got) != 1 || got[0] != "Please enter your name:" {
		t.Fatalf("language step replies = %v", got)
	}

	replies = m.OnText(ctx, 1, "Jane")
	if got := texts(replies); len(got) != 1 || got[0] != "Enter your phone number:" {
		t.Fatalf("name step replies = %v", got)
	}

	replies = m.OnText(ctx, 1, "+1555123456")
	if got := texts(replies); len(got) != 1 || got[0] != "Please describe your question or issue." {
		t.Fatalf("phone step replies = %v", got)
	}

	replies = m.OnText(ctx, 1, "Leaking brake line")
	if len(replies) != 1 {
		t.Fatalf("description step replies = %v", texts(replies))
	}

	replies = m.OnSkip(ctx, 1)
	if len(replies) != 2 {
		t.Fatalf("skip replies = %v, want confirmation + extra hint", texts(replies))
	}

	if len(notifier.records) != 1 {
		t.Fatalf("notifier invoked %d times, want 1", len(notifier.records))
	}
	rec := notifier.records[0]
	if rec.Name != "Jane" || rec.Phone != "+1555123456" || rec.Description != "Leaking brake line" {
		t.Fatalf("record fields = %+v", rec)
	}
	if rec.Language != LangEnglish {
		t.Fatalf("record language = %q", rec.Language)
	}
	if len(rec.Attachments) != 0 {
		t.Fatalf("record attachments = %v, want empty", rec.Attachments)
	}
	if rec.ID == "" {
		t.Fatal("record ID is empty")
	}

	if got := m.Store().Get(1).Step(); got != StepFinished {
		t.Fatalf("step after finish = %v", got)
	}
}

func TestPhotosPreserveArrivalOrder(t *testing.T) {
	ctx := context.Background()
	m, notifier, releaser := newTestMachine(t)

	runIntake(ctx, m, 2)
	for _, ref := range []string{"p1.jpg", "p2.jpg", "p3.jpg"} {
		replies := m.OnPhoto(ctx, 2, ref)
		if len(replies) != 1 {
			t.Fatalf("photo %s replies = %v", ref, texts(replies))
		}
	}
	m.OnSkip(ctx, 2)

	if len(notifier.records) != 1 {
		t.Fatalf("notifier invoked %d times", len(notifier.records))
	}
	got := notifier.records[0].Attachments
	want := []string{"p1.jpg", "p2.jpg", "p3.jpg"}
	if len(got) != len(want) {
		t.Fatalf("attachments = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attachments = %v, want %v", got, want)
		}
	}

	// Release runs once per attachment, after the record is dispatched.
	if len(releaser.released) != 3 {
		t.Fatalf("released %d refs, want 3", len(releaser.released))
	}
}

func TestSkipBeforeDescriptionIsNoop(t *testing.T) {
	ctx := context.Background()
	m, notifier, _ := newTestMachine(t)

	m.OnStart(ctx, 3)
	m.OnText(ctx, 3, "English")
	m.OnText(ctx, 3, "Jane")

	if replies := m.OnSkip(ctx, 3); replies != nil {
		t.Fatalf("skip replies = %v, want none", texts(replies))
	}
	if len(notifier.records) != 0 {
		t.Fatal("record produced by premature skip")
	}
	if got := m.Store().Get(3).Step(); got != StepPhone {
		t.Fatalf("step = %v, want phone", got)
	}
}

func TestStartResetsAnyState(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t)

	runIntake(ctx, m, 4)
	m.OnSkip(ctx, 4)
	if got := m.Store().Get(4).Step(); got != StepFinished {
		t.Fatalf("step = %v, want finished", got)
	}

	m.OnStart(ctx, 4)
	sess := m.Store().Get(4)
	if got := sess.Step(); got != StepLanguage {
		t.Fatalf("step after restart = %v, want language", got)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.Name != "" || sess.Phone != "" || sess.Description != "" || sess.Photos != nil || sess.Finished {
		t.Fatalf("session not cleared: %+v", sess)
	}
}

func TestSupplementaryAfterFinish(t *testing.T) {
	ctx := context.Background()
	m, notifier, _ := newTestMachine(t)

	runIntake(ctx, m, 5)
	m.OnSkip(ctx, 5)

	replies := m.OnText(ctx, 5, "Any update?")
	if got := texts(replies); len(got) != 1 || got[0] != "✉️ Thank you! Your message has been received." {
		t.Fatalf("supplementary replies = %v", got)
	}

	if len(notifier.supplements) != 1 {
		t.Fatalf("supplementary invoked %d times, want 1", len(notifier.supplements))
	}
	msg := notifier.supplements[0]
	if msg.Name != "Jane" || msg.Phone != "+1555123456" || msg.Text != "Any update?" || msg.Language != LangEnglish {
		t.Fatalf("supplementary fields = %+v", msg)
	}
	if len(notifier.records) != 1 {
		t.Fatal("supplementary message produced a second record")
	}
	if got := m.Store().Get(5).Step(); got != StepFinished {
		t.Fatalf("step = %v, want finished", got)
	}
}

func TestLanguageOverrideMidFlow(t *testing.T) {
	ctx := context.Background()
	m, notifier, _ := newTestMachine(t)

	m.OnStart(ctx, 6)
	m.OnText(ctx, 6, "English")
	m.OnText(ctx, 6, "Jane")

	// A language word mid-flow re-selects the language without clearing
	// captured fields; the machine re-prompts for the name.
	replies := m.OnText(ctx, 6, "Suomi")
	if got := texts(replies); len(got) != 1 || got[0] != "Kirjoita nimesi:" {
		t.Fatalf("override replies = %v", got)
	}

	// The name survived, so the next text fills the phone slot.
	m.OnText(ctx, 6, "+358401234567")
	m.OnText(ctx, 6, "Jarru vuotaa")
	m.OnSkip(ctx, 6)

	rec := notifier.records[0]
	if rec.Name != "Jane" || rec.Phone != "+358401234567" || rec.Language != LangFinnish {
		t.Fatalf("record after override = %+v", rec)
	}
}

func TestOutOfOrderEventsIgnored(t *testing.T) {
	ctx := context.Background()
	m, notifier, _ := newTestMachine(t)

	m.OnStart(ctx, 7)
	if replies := m.OnPhoto(ctx, 7, "early.jpg"); replies != nil {
		t.Fatalf("photo before description replied %v", texts(replies))
	}

	runIntake(ctx, m, 7)
	m.OnSkip(ctx, 7)

	if replies := m.OnPhoto(ctx, 7, "late.jpg"); replies != nil {
		t.Fatalf("photo after finish replied %v", texts(replies))
	}
	if got := notifier.records[0].Attachments; len(got) != 0 {
		t.Fatalf("attachments = %v, want empty", got)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, notifier, _ := newTestMachine(t)

	runIntake(ctx, m, 8)
	m.OnSkip(ctx, 8)
	if replies := m.OnSkip(ctx, 8); replies != nil {
		t.Fatalf("second skip replied %v", texts(replies))
	}
	if len(notifier.records) != 1 {
		t.Fatalf("notifier invoked %d times, want 1", len(notifier.records))
	}
}

func TestNotifierFailureDoesNotAffectReplies(t *testing.T) {
	ctx := context.Background()
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	m := NewMachine(Config{Notifier: notifier})

	runIntake(ctx, m, 9)
	replies := m.OnSkip(ctx, 9)
	if len(replies) != 2 {
		t.Fatalf("skip replies = %v, want confirmation + extra hint despite dispatch failure", texts(replies))
	}
	if got := m.Store().Get(9).Step(); got != StepFinished {
		t.Fatalf("step = %v, want finished", got)
	}
}

func TestIntakeWithoutExplicitStart(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t)

	// First contact from an unknown user creates a session; with no
	// language selected the text lands in the name slot and prompts in
	// the default language.
	replies := m.OnText(ctx, 10, "Jane")
	if got := texts(replies); len(got) != 1 || got[0] != "Enter your phone number:" {
		t.Fatalf("replies = %v", got)
	}
	if got := m.Store().Get(10).Step(); got != StepPhone {
		t.Fatalf("step = %v, want phone", got)
	}
}

package mailer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m3rciful/intakebot/intake"
)

func TestFormatRecordBody(t *testing.T) {
	body := formatRecordBody(intake.Record{
		Name:        "Matti Meikäläinen",
		Phone:       "+358 40 123 4567",
		Description: "Vaihteisto pitää outoa ääntä.",
		Language:    intake.LangFinnish,
	})

	for _, want := range []string{
		"Nimi: Matti Meikäläinen",
		"Puhelin: +358 40 123 4567",
		"Kuvaus: Vaihteisto pitää outoa ääntä.",
		"Kieli: Suomi",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestFormatSupplementaryBody(t *testing.T) {
	body := formatSupplementaryBody(intake.Supplementary{
		Name:     "Ivan",
		Phone:    "+7 900 000 0000",
		Language: intake.LangRussian,
		Text:     "Забыл сказать про царапину.",
	})

	if !strings.Contains(body, "Забыл сказать про царапину.") {
		t.Errorf("body missing supplementary text:\n%s", body)
	}
	if !strings.Contains(body, "Nimi: Ivan") {
		t.Errorf("body missing name:\n%s", body)
	}
}

func TestLoadAttachmentsSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "photo_1_a.jpg")
	if err := os.WriteFile(good, []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "photo_1_gone.jpg")

	attachments := loadAttachments(context.Background(), []string{good, missing})
	if len(attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(attachments))
	}
	if attachments[0].Filename != "photo_1_a.jpg" {
		t.Errorf("filename = %q", attachments[0].Filename)
	}
	if attachments[0].Content != "jpeg-bytes" {
		t.Errorf("content = %q", attachments[0].Content)
	}
}

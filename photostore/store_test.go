package photostore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndRelease(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ref, err := store.Save(ctx, 42, strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(ref) != dir {
		t.Errorf("ref %q not under %q", ref, dir)
	}
	base := filepath.Base(ref)
	if !strings.HasPrefix(base, "photo_42_") || !strings.HasSuffix(base, ".jpg") {
		t.Errorf("unexpected file name %q", base)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("content = %q", data)
	}

	if err := store.Release(ctx, ref); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ref); !os.IsNotExist(err) {
		t.Errorf("file still present after release: %v", err)
	}

	// Releasing twice is fine.
	if err := store.Release(ctx, ref); err != nil {
		t.Errorf("second release: %v", err)
	}
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := store.Save(ctx, 7, strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Save(ctx, 7, strings.NewReader("b"))
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("duplicate reference %q", first)
	}
}

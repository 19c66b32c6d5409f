package intake

import (
	"strings"
	"testing"
)

func TestDefaultTableIsTotal(t *testing.T) {
	table := DefaultTable()
	for _, lang := range Languages {
		for _, p := range allPrompts {
			if table.Resolve(lang, p) == "" {
				t.Errorf("empty prompt %q for language %q", p, lang)
			}
		}
	}
}

func TestNewTableRejectsGaps(t *testing.T) {
	texts := map[Language]map[Prompt]string{}
	for _, lang := range Languages {
		texts[lang] = map[Prompt]string{}
		for _, p := range allPrompts {
			texts[lang][p] = "x"
		}
	}

	if _, err := NewTable(texts); err != nil {
		t.Fatalf("complete table rejected: %v", err)
	}

	delete(texts[LangRussian], PromptPhotoHint)
	if _, err := NewTable(texts); err == nil {
		t.Fatal("table with a missing prompt accepted")
	} else if !strings.Contains(err.Error(), string(PromptPhotoHint)) {
		t.Fatalf("error does not name the missing prompt: %v", err)
	}

	delete(texts, LangFinnish)
	if _, err := NewTable(texts); err == nil {
		t.Fatal("table with a missing language accepted")
	}
}

func TestResolveFallsBackToEnglish(t *testing.T) {
	table := DefaultTable()
	got := table.Resolve(Language("Svenska"), PromptAskName)
	want := table.Resolve(LangEnglish, PromptAskName)
	if got != want {
		t.Fatalf("fallback = %q, want %q", got, want)
	}
}

func TestParseLanguage(t *testing.T) {
	cases := []struct {
		in   string
		want Language
		ok   bool
	}{
		{"Suomi", LangFinnish, true},
		{"Русский", LangRussian, true},
		{"English", LangEnglish, true},
		{"english", "", false},
		{"Deutsch", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseLanguage(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseLanguage(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

package history

import "testing"

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  Status
		ok    bool
	}{
		{"in_progress", StatusInProgress, true},
		{"  Completed  ", StatusCompleted, true},
		{"CONVERSION_INTERRUPTED", StatusConversionInterrupted, true},
		{"", "", false},
		{"downloading", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseStatus(tc.input)
		if ok != tc.ok {
			t.Errorf("ParseStatus(%q) ok = %v, want %v", tc.input, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusInProgress.IsTerminal() {
		t.Error("in_progress must not be terminal")
	}
	for _, status := range []Status{
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
		StatusConversionInterrupted,
		StatusConversionCompleted,
	} {
		if !status.IsTerminal() {
			t.Errorf("%s must be terminal", status)
		}
	}
}

func TestLangRoundTrip(t *testing.T) {
	joined := joinLangs([]string{" en ", "", "es", "ja"})
	if joined != "en,es,ja" {
		t.Fatalf("joinLangs = %q", joined)
	}
	langs := splitLangs(joined)
	if len(langs) != 3 || langs[0] != "en" || langs[2] != "ja" {
		t.Fatalf("splitLangs = %v", langs)
	}
	if splitLangs("  ") != nil {
		t.Error("splitLangs of blank input should be nil")
	}
}

package workflow

import "testing"

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/media/local-clip.webm", "Local Clip"},
		{"/media/my_favorite.show.part2.mkv", "My Favorite Show Part2"},
		{"/media/...---.webm", "Untitled"},
		{"", "Untitled"},
		{"clip.webm", "Clip"},
	}
	for _, tc := range cases {
		if got := deriveTitle(tc.path); got != tc.want {
			t.Errorf("deriveTitle(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{"A/B: The \"Sequel\"?", "A-B- The Sequel"},
		{"  spaced  ", "spaced"},
		{"<angle>|pipe", "anglepipe"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sanitizeTitle(tc.in); got != tc.want {
			t.Errorf("sanitizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTargetPath(t *testing.T) {
	if got := targetPath("/d/clip.webm", "mp4"); got != "/d/clip.mp4" {
		t.Fatalf("targetPath = %q", got)
	}
	if got := targetPath("/d/clip.webm", ".mp4"); got != "/d/clip.mp4" {
		t.Fatalf("targetPath with dotted ext = %q", got)
	}
	if got := targetPath("/d/noext", "mp4"); got != "/d/noext.mp4" {
		t.Fatalf("targetPath without source ext = %q", got)
	}
}

func TestNeedsConversion(t *testing.T) {
	cases := []struct {
		output string
		target string
		want   bool
	}{
		{"/d/clip.webm", "mp4", true},
		{"/d/clip.mp4", "mp4", false},
		{"/d/clip.MP4", "mp4", false},
		{"/d/clip.webm", "", false},
		{"", "mp4", false},
		{"/d/noext", "mp4", false},
	}
	for _, tc := range cases {
		if got := needsConversion(tc.output, tc.target); got != tc.want {
			t.Errorf("needsConversion(%q, %q) = %v, want %v", tc.output, tc.target, got, tc.want)
		}
	}
}

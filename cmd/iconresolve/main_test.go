package main

import "testing"

func TestShow(t *testing.T) {
	svg := "svg"
	cases := []struct {
		v       *string
		missing bool
		want    string
	}{
		{&svg, false, `"svg"`},
		{nil, false, "null"},
		{nil, true, "(missing)"},
	}
	for _, c := range cases {
		if got := show(c.v, c.missing); got != c.want {
			t.Fatalf("show(%v, %v) = %q, want %q", c.v, c.missing, got, c.want)
		}
	}
}

func TestRunRejectsMissingBaseURL(t *testing.T) {
	t.Setenv("ICON_BASE_URL", "")
	t.Setenv("ICON_INTERVAL", "")
	t.Chdir(t.TempDir())
	if code := run(nil); code != exitError {
		t.Fatalf("expected exit %d, got %d", exitError, code)
	}
}

func TestRunRejectsIntervalInCheckMode(t *testing.T) {
	t.Setenv("ICON_BASE_URL", "https://cdn.example.com")
	t.Setenv("ICON_CHECK_ONLY", "")
	t.Setenv("ICON_INTERVAL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Chdir(t.TempDir())
	if code := run([]string{"-check", "-interval", "1m"}); code != exitError {
		t.Fatalf("expected exit %d, got %d", exitError, code)
	}
}

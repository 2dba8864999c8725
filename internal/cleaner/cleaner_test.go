package cleaner

import "testing"

func TestCleanCollapsesWhitespace(t *testing.T) {
	c := New()
	got := c.Clean("  change   the\n\n engine\toil  ")
	want := "change the engine oil"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCleanFoldsLigaturesAndQuotes(t *testing.T) {
	c := New()
	got := c.Clean("ﬁlter “cap” – removal")
	want := `filter "cap" - removal`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCleanRepairsHyphenation(t *testing.T) {
	c := New()
	got := c.Clean("drain the cool-\nant completely")
	want := "drain the coolant completely"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCleanKeepsRealHyphens(t *testing.T) {
	c := New()
	got := c.Clean("torque the anti-vibration mount")
	want := "torque the anti-vibration mount"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCleanStripsBullets(t *testing.T) {
	c := New()
	got := c.Clean("• check tire pressure\n• check chain slack")
	want := "check tire pressure check chain slack"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCleanIsDeterministic(t *testing.T) {
	c := New()
	in := "Sched-\nuled   maintenance • ﬁrst “service”"
	first := c.Clean(in)
	for i := 0; i < 5; i++ {
		if got := c.Clean(in); got != first {
			t.Fatalf("cleaning not deterministic: %q vs %q", first, got)
		}
	}
}

func TestCleanEmpty(t *testing.T) {
	if got := New().Clean(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

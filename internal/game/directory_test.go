package game

import "testing"

func TestDirectory_SetAndGet(t *testing.T) {
	d := NewDirectory()
	d.SetName("0xAB", "Alice")
	if got := d.Get("0xab"); got != "Alice" {
		t.Fatalf("got %q", got)
	}
	d.SetName("0xab", "Alicia")
	if got := d.Get("0xAB"); got != "Alicia" {
		t.Fatalf("overwrite failed: %q", got)
	}
}

func TestDirectory_UnknownFallback(t *testing.T) {
	d := NewDirectory()
	if got := d.Get("0xnobody"); got != UnknownName {
		t.Fatalf("got %q, want %q", got, UnknownName)
	}
	if _, ok := d.Lookup("0xnobody"); ok {
		t.Fatalf("lookup reported a name for an unknown address")
	}
}

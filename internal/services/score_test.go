package services

import "testing"

func TestAccuracyTable(t *testing.T) {
	cases := []struct {
		valence int
		key     string
		want    int
	}{
		{1, "Y", 1},
		{1, "N", 0},
		{0, "N", 1},
		{0, "Y", 0},
		{2, "N", 1},
		{2, "Y", 0},
		{-1, "N", 1},
	}
	for _, c := range cases {
		if got := Accuracy(c.valence, c.key); got != c.want {
			t.Fatalf("Accuracy(%d,%q)=%d want %d", c.valence, c.key, got, c.want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	for in, want := range map[string]string{"y": "Y", " N ": "N", "Y": "Y"} {
		got, ok := NormalizeKey(in)
		if !ok || got != want {
			t.Fatalf("NormalizeKey(%q)=%q,%v", in, got, ok)
		}
	}
	for _, in := range []string{"", "yes", "X", "1"} {
		if _, ok := NormalizeKey(in); ok {
			t.Fatalf("NormalizeKey(%q) accepted", in)
		}
	}
}

func TestParseResponseTime(t *testing.T) {
	if v, ok := ParseResponseTime(" 512.25 "); !ok || v != 512.25 {
		t.Fatalf("got %v,%v", v, ok)
	}
	if v, ok := ParseResponseTime("0"); !ok || v != 0 {
		t.Fatalf("zero rejected")
	}
	for _, in := range []string{"", "-1", "abc", "NaN", "Inf", "1e400"} {
		if _, ok := ParseResponseTime(in); ok {
			t.Fatalf("ParseResponseTime(%q) accepted", in)
		}
	}
}

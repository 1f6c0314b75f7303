package util

import "testing"

func TestContainsFold(t *testing.T) {
	cases := []struct {
		needle string
		hay    []string
		want   bool
	}{
		{"", []string{"anything"}, true},
		{"contract", []string{"Sales CONTRACT.pdf"}, true},
		{"STRASSE", []string{"Hauptstraße 1"}, true},
		{"nda", []string{"invoice.pdf", "lease.pdf"}, false},
		{"ali", []string{"bob@example.com", "Alice"}, true},
	}
	for _, tc := range cases {
		if got := ContainsFold(tc.needle, tc.hay...); got != tc.want {
			t.Fatalf("ContainsFold(%q, %v) = %v, want %v", tc.needle, tc.hay, got, tc.want)
		}
	}
}

func TestPageAndWindow(t *testing.T) {
	limit, offset := Page(0, -3, 20, 50)
	if limit != 20 || offset != 0 {
		t.Fatalf("expected defaults, got %d/%d", limit, offset)
	}
	limit, _ = Page(500, 0, 20, 50)
	if limit != 50 {
		t.Fatalf("expected clamp to 50, got %d", limit)
	}
	start, end := Window(5, 20, 3)
	if start != 3 || end != 5 {
		t.Fatalf("unexpected window %d:%d", start, end)
	}
	start, end = Window(5, 20, 9)
	if start != 5 || end != 5 {
		t.Fatalf("expected empty window, got %d:%d", start, end)
	}
}

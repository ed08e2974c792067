package h2

import (
	"reflect"
	"testing"
)

func TestHeadersOrderAndCase(t *testing.T) {
	var h Headers
	h.Add("Accept", "text/html")
	h.Add("x-first", "1")
	h.Add("X-First", "2")

	if got := h.Get("accept"); got != "text/html" {
		t.Errorf("expected case-insensitive get, got %q", got)
	}
	if got := h.Values("x-first"); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("expected values in insertion order, got %v", got)
	}
	if h.Len() != 3 {
		t.Errorf("expected 3 fields, got %d", h.Len())
	}
}

func TestHeadersSetCollapses(t *testing.T) {
	var h Headers
	h.Add("cookie", "a=b")
	h.Add("other", "x")
	h.Add("Cookie", "c=d")

	h.Set("cookie", "a=b; c=d")
	if h.Len() != 2 {
		t.Fatalf("expected 2 fields after set, got %d", h.Len())
	}
	if got := h.Get("cookie"); got != "a=b; c=d" {
		t.Errorf("expected combined cookie, got %q", got)
	}
	// replacement takes the position of the first prior entry
	var names []string
	h.ForEach(func(name, _ string) { names = append(names, name) })
	if !reflect.DeepEqual(names, []string{"cookie", "other"}) {
		t.Errorf("expected cookie first, got %v", names)
	}
}

func TestHeadersSetAppendsWhenAbsent(t *testing.T) {
	var h Headers
	h.Set("x-new", "v")
	if got := h.Get("x-new"); got != "v" {
		t.Errorf("expected appended value, got %q", got)
	}
}

func TestHeadersCombine(t *testing.T) {
	var h Headers
	h.Add("cookie", "a=b")
	h.Add("cookie", "c=d")
	if got := h.Combine("cookie", "; "); got != "a=b; c=d" {
		t.Errorf("expected joined cookies, got %q", got)
	}
	if got := h.Combine("missing", "; "); got != "" {
		t.Errorf("expected empty combine for missing name, got %q", got)
	}
}

func TestMessageKinds(t *testing.T) {
	req := NewRequest("GET", "/")
	if !req.IsRequest() {
		t.Error("expected request message")
	}
	resp := NewResponse(204)
	if resp.IsRequest() {
		t.Error("expected response message")
	}
	if resp.StatusCode != 204 {
		t.Errorf("expected status 204, got %d", resp.StatusCode)
	}
}

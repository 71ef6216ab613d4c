package api

import (
	"net/http"
	"testing"

	"resumeBuilder/internal/assistant"
)

func TestAssistantSuggestFallback(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, request{
		method: http.MethodPost,
		path:   "/v1/assistant/suggest",
		device: deviceA,
		body:   map[string]string{"seed": "todo app", "mode": "project"},
	})
	expectStatus(t, w, http.StatusOK)
	got := decode[assistant.Suggestion](t, w)
	if !got.Fallback || got.Notice == "" {
		t.Fatalf("offline assistant should fall back with a notice, got %+v", got)
	}
	if got.Text != assistant.Fallback(assistant.ModeProject, "todo app") {
		t.Fatalf("unexpected fallback text %q", got.Text)
	}
}

func TestAssistantSuggestValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{name: "empty seed", body: map[string]string{"seed": "  ", "mode": "improve"}},
		{name: "unknown mode", body: map[string]string{"seed": "x", "mode": "poem"}},
		{name: "missing mode", body: map[string]string{"seed": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, request{method: http.MethodPost, path: "/v1/assistant/suggest", device: deviceA, body: tc.body})
			expectStatus(t, w, http.StatusBadRequest)
		})
	}
}

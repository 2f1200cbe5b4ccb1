package notify

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/EllysonAlves/follower/internal/api"
	"github.com/EllysonAlves/follower/internal/logger"
)

func TestForError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		sev     Severity
		message string
	}{
		{"conflict", &api.Error{Status: 409}, Info, "already liked"},
		{"client with message", &api.Error{Status: 400, Message: "text is required"}, Error, "text is required"},
		{"client without message", &api.Error{Status: 403}, Error, "Could not like (status 403)"},
		{"server", &api.Error{Status: 502, Message: "bad gateway"}, Error, msgServer},
		{"network", fmt.Errorf("x: %w", api.ErrNetwork), Error, msgNetwork},
		{"unknown", errors.New("??"), Error, "Could not like"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := ForError(tc.err, "already liked", "Could not like")
			if n.Severity != tc.sev || n.Message != tc.message {
				t.Fatalf("got %+v, want %s %q", n, tc.sev, tc.message)
			}
		})
	}
}

func TestForErrorWithoutFallback(t *testing.T) {
	if n := ForError(errors.New("??"), "", ""); n.Message != msgUnknown {
		t.Fatalf("expected generic message, got %q", n.Message)
	}
	if n := ForError(&api.Error{Status: 404}, "", ""); n.Message != "Request failed (status 404)" {
		t.Fatalf("expected status-keyed message, got %q", n.Message)
	}
}

func TestNewDefaults(t *testing.T) {
	if n := New(Error, "x"); n.Title != "Error" || n.Visible.Seconds() != 5 {
		t.Fatalf("unexpected error notice %+v", n)
	}
	if n := New(Success, "x"); n.Title != "Success" || n.Visible.Seconds() != 4 {
		t.Fatalf("unexpected success notice %+v", n)
	}
}

func TestRecorderKeepsEveryNotice(t *testing.T) {
	var r Recorder
	r.Notify(New(Info, "a"))
	r.Notify(New(Info, "a"))

	if got := len(r.Notices()); got != 2 {
		t.Fatalf("notices must not be coalesced, got %d", got)
	}
	last, ok := r.Last()
	if !ok || last.Message != "a" {
		t.Fatalf("unexpected last notice %+v", last)
	}
	r.Reset()
	if _, ok := r.Last(); ok {
		t.Fatalf("expected empty recorder")
	}
}

func TestLogNotifierUsesSeverityLevel(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logger.NewWithWriter(&buf))

	n.Notify(New(Error, "boom"))
	n.Notify(New(Success, "done"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"level":"ERROR"`) || !strings.Contains(lines[1], `"level":"INFO"`) {
		t.Fatalf("unexpected levels: %v", lines)
	}
}

package api

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&Error{Status: 409}, KindConflict},
		{fmt.Errorf("like: %w", &Error{Status: 409}), KindConflict},
		{&Error{Status: 400, Message: "bad"}, KindClient},
		{&Error{Status: 404}, KindClient},
		{&Error{Status: 503}, KindServer},
		{fmt.Errorf("get: %w", ErrNetwork), KindNetwork},
		{fmt.Errorf("text: %w", ErrValidation), KindValidation},
		{errors.New("weird"), KindUnknown},
		{nil, KindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestConflictSentinelOnlyMatches409(t *testing.T) {
	if !errors.Is(&Error{Status: 409}, ErrConflict) {
		t.Fatalf("409 must match ErrConflict")
	}
	if errors.Is(&Error{Status: 400}, ErrConflict) {
		t.Fatalf("400 must not match ErrConflict")
	}
}

func TestErrorString(t *testing.T) {
	if got := (&Error{Status: 500}).Error(); got != "api: status 500" {
		t.Fatalf("unexpected %q", got)
	}
	if got := (&Error{Status: 400, Message: "text required"}).Error(); got != "api: status 400: text required" {
		t.Fatalf("unexpected %q", got)
	}
}

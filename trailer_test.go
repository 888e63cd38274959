package svn2svn

import (
	"strings"
	"testing"
	"time"
)

func TestFormatMessage(t *testing.T) {
	date := time.Date(2011, 2, 25, 5, 50, 15, 0, time.UTC)

	got := FormatMessage("fix the widget\n", 123, "alice", date, true, true)
	want := "fix the widget\n\n" +
		"Original-Author: alice\n" +
		"Original-Date: 2011-02-25T05:50:15.000000Z\n" +
		"Replayed-From-Rev: 123\n"
	if got != want {
		t.Errorf("FormatMessage = %q, want %q", got, want)
	}

	got = FormatMessage("fix the widget", 123, "alice", date, false, false)
	if strings.Contains(got, "Original-") {
		t.Errorf("metadata trailers present without log flags: %q", got)
	}
	if !strings.Contains(got, "Replayed-From-Rev: 123") {
		t.Errorf("revision trailer missing: %q", got)
	}
}

func TestParseSourceRev(t *testing.T) {
	cases := []struct {
		message string
		want    int64
		ok      bool
	}{
		{"fix\n\nReplayed-From-Rev: 42\n", 42, true},
		{"no trailer here", 0, false},
		{"Replayed-From-Rev: 1\nmore text\nReplayed-From-Rev: 7\n", 7, true},
		{"inline Replayed-From-Rev: 9 not at line start", 0, false},
		{"Replayed-From-Rev: 10", 10, true},
	}

	for _, c := range cases {
		got, ok := ParseSourceRev(c.message)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseSourceRev(%q) = (%d, %v), want (%d, %v)",
				c.message, got, ok, c.want, c.ok)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	msg := FormatMessage("some work", 57, "bob", time.Now(), true, false)
	got, ok := ParseSourceRev(msg)
	if !ok || got != 57 {
		t.Fatalf("round trip = (%d, %v), want (57, true)", got, ok)
	}
}

package nats

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

func TestEventRoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	raw, err := encodeEvent("u-42", at)
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	ev, err := decodeEvent(raw)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if ev.UploadID != "u-42" || !ev.PublishedAt.Equal(at) {
		t.Fatalf("unexpected event: %#v", ev)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"u-42", `{"published_at":"2026-10-18T09:30:00Z"}`} {
		if _, err := decodeEvent([]byte(payload)); err == nil {
			t.Fatalf("expected error for %q", payload)
		}
	}
}

func TestWrapTemporaryMarksConnectionErrors(t *testing.T) {
	err := wrapTemporaryIfNeeded(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}

	permanent := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(permanent); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("permanent errors must not be marked temporary: %v", got)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

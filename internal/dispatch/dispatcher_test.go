package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"uscite/internal/core"
	applog "uscite/internal/log"
)

type recordingMarkers struct {
	set  []core.MonthKey
	fail error
}

func (m *recordingMarkers) SetMarker(_ context.Context, mk core.MonthKey) error {
	if m.fail != nil {
		return m.fail
	}
	m.set = append(m.set, mk)
	return nil
}

type failingComposer struct{}

func (failingComposer) Compose(context.Context, string, string) error {
	return ErrDeliveryUnavailable
}

func newTestDispatcher(c Composer, m MarkerWriter) *Dispatcher {
	logger := applog.New(applog.DefaultConfig())
	return NewDispatcher(c, m, "+39 123 456 7890", "Spese", logger)
}

func TestBuildSummaryText(t *testing.T) {
	d := newTestDispatcher(NewLinkComposer(), &recordingMarkers{})

	text := d.BuildSummaryText("2025-08", core.Money{Cents: 12050})
	if !strings.Contains(text, "08/2025") {
		t.Fatalf("expected month rendering 08/2025 in %q", text)
	}
	if !strings.Contains(text, "120.50") {
		t.Fatalf("expected two-decimal total 120.50 in %q", text)
	}
	if !strings.HasPrefix(text, "Spese") {
		t.Fatalf("expected label prefix in %q", text)
	}
}

func TestDispatchSetsMarkerToCurrentMonth(t *testing.T) {
	markers := &recordingMarkers{}
	composer := NewLinkComposer()
	d := newTestDispatcher(composer, markers)

	err := d.Dispatch(context.Background(), "2025-08", core.Money{Cents: 12050}, "2025-09")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(markers.set) != 1 || markers.set[0] != "2025-09" {
		t.Fatalf("expected marker set to current month 2025-09, got %v", markers.set)
	}

	link := composer.LastLink()
	if !strings.HasPrefix(link, "https://wa.me/391234567890?text=") {
		t.Fatalf("unexpected deep link %q", link)
	}
	if !strings.Contains(link, "120.50") {
		t.Fatalf("expected escaped total in link %q", link)
	}
}

func TestDispatchFailureLeavesMarkerUntouched(t *testing.T) {
	markers := &recordingMarkers{}
	d := newTestDispatcher(failingComposer{}, markers)

	err := d.Dispatch(context.Background(), "2025-08", core.Money{Cents: 100}, "2025-09")
	if !errors.Is(err, ErrDeliveryUnavailable) {
		t.Fatalf("expected ErrDeliveryUnavailable, got %v", err)
	}
	if len(markers.set) != 0 {
		t.Fatalf("marker must not update on failed invocation, got %v", markers.set)
	}
}

func TestDispatchMarkerWriteFailureSurfaces(t *testing.T) {
	markers := &recordingMarkers{fail: errors.New("disk full")}
	d := newTestDispatcher(NewLinkComposer(), markers)

	err := d.Dispatch(context.Background(), "2025-08", core.Money{Cents: 100}, "2025-09")
	if err == nil {
		t.Fatalf("expected error when marker write fails")
	}
}

package history

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/narcan-finder/internal/circuit"
	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/signals"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntry(symptoms string, tier urgency.Tier) Entry {
	return Entry{
		Location: "Portland, OR",
		Symptoms: symptoms,
		Sample:   sampler.ResourceSample{CPU: 0.42, Memory: 0.61},
		Features: signals.FeatureVector{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7},
		Wires:    circuit.WireResult{-0.1, 0.2, -0.3, 0.4, -0.5, 0.6, -0.7},
		Verdict: urgency.Verdict{
			Score:       0.45,
			WeightedSum: 0.45,
			Tier:        tier,
			Reason:      "score in medium band",
		},
	}
}

func TestRecordAndGet(t *testing.T) {
	s := tempStore(t)

	in := sampleEntry("unresponsive, slow breathing", urgency.TierMedium)
	rec, err := s.Record(in)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("expected generated timestamp")
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordKeepsProvidedIDAndTime(t *testing.T) {
	s := tempStore(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	in := sampleEntry("", urgency.TierLow)
	in.ID = "fixed-id"
	in.CreatedAt = at
	if _, err := s.Record(in); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := s.Get("fixed-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.CreatedAt.Equal(at) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, at)
	}
	if _, err := s.Record(in); err == nil {
		t.Fatal("expected duplicate ID to be rejected")
	}
}

func TestGetMissing(t *testing.T) {
	s := tempStore(t)
	_, err := s.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetAdvice(t *testing.T) {
	s := tempStore(t)
	rec, err := s.Record(sampleEntry("overdose", urgency.TierHigh))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := s.SetAdvice(rec.ID, "Option 1: pharmacy on Main St", ""); err != nil {
		t.Fatalf("SetAdvice: %v", err)
	}
	got, _ := s.Get(rec.ID)
	if got.Advice != "Option 1: pharmacy on Main St" || got.AdviceErr != "" {
		t.Fatalf("advice = %q / %q", got.Advice, got.AdviceErr)
	}

	if err := s.SetAdvice(rec.ID, "", "advisory: timeout"); err != nil {
		t.Fatalf("SetAdvice: %v", err)
	}
	got, _ = s.Get(rec.ID)
	if got.Advice != "" || got.AdviceErr != "advisory: timeout" {
		t.Fatalf("advice = %q / %q", got.Advice, got.AdviceErr)
	}

	if err := s.SetAdvice("missing", "x", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := tempStore(t)
	for i := 0; i < 12; i++ {
		if _, err := s.Record(sampleEntry(fmt.Sprintf("request %d", i), urgency.TierLow)); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(recent))
	}
	if recent[0].Symptoms != "request 11" {
		t.Errorf("newest = %q, want request 11", recent[0].Symptoms)
	}
	if recent[9].Symptoms != "request 2" {
		t.Errorf("oldest returned = %q, want request 2", recent[9].Symptoms)
	}
}

func TestRecentEmpty(t *testing.T) {
	s := tempStore(t)
	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no entries, got %d", len(recent))
	}
}

func TestCount(t *testing.T) {
	s := tempStore(t)
	for _, tier := range []urgency.Tier{urgency.TierLow, urgency.TierHigh, urgency.TierHigh} {
		if _, err := s.Record(sampleEntry("x", tier)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	counts, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	want := map[urgency.Tier]int{urgency.TierLow: 1, urgency.TierHigh: 2}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestInMemoryStore(t *testing.T) {
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	if _, err := s.Record(sampleEntry("x", urgency.TierLow)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	recent, err := s.Recent(5)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Recent = %d entries, err %v", len(recent), err)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rec, err := s.Record(sampleEntry("persist me", urgency.TierMedium))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	s.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Symptoms != "persist me" {
		t.Fatalf("symptoms = %q", got.Symptoms)
	}
}

package catalog

import (
	"testing"
	"time"
)

func TestNewSegment_RowUnassigned(t *testing.T) {
	s := NewSegment("a.wav", "manual", 0, 1, "rain on glass", "rain glass")
	if s.Row() != UnassignedRow {
		t.Errorf("Row() = %d, want %d", s.Row(), UnassignedRow)
	}
	if s.HasBand() {
		t.Error("HasBand() = true for a segment without bounds")
	}
	if s.HasDuration() {
		t.Error("HasDuration() = true for a segment without duration")
	}
}

func TestSegment_WithBand(t *testing.T) {
	s := NewSegment("a.wav", "manual", 0, 1, "rain", "rain").WithBand(200, 2000)
	if !s.HasBand() {
		t.Fatal("HasBand() = false after WithBand")
	}
	if s.FreqLow() != 200 || s.FreqHigh() != 2000 {
		t.Errorf("band = [%v, %v], want [200, 2000]", s.FreqLow(), s.FreqHigh())
	}
}

func TestSegment_WithEmbedding_ReplacesBoth(t *testing.T) {
	s := NewSegment("a.wav", "manual", 0, 1, "rain", "old text").WithRow(3)
	s = s.WithEmbedding("new text", 7)
	if s.EmbeddingText() != "new text" {
		t.Errorf("EmbeddingText() = %q, want %q", s.EmbeddingText(), "new text")
	}
	if s.Row() != 7 {
		t.Errorf("Row() = %d, want 7", s.Row())
	}
}

func TestReconstructSegment_RoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := ReconstructSegment(42, "a.wav", "manual", 0.25, 0.75, "desc", "text", 5, 100, 400, 1.5, created)

	if s.ID() != 42 || s.Row() != 5 {
		t.Errorf("ID, Row = %d, %d, want 42, 5", s.ID(), s.Row())
	}
	if s.Start() != 0.25 || s.End() != 0.75 {
		t.Errorf("window = [%v, %v], want [0.25, 0.75]", s.Start(), s.End())
	}
	if !s.HasBand() || !s.HasDuration() {
		t.Error("expected band and duration set")
	}
	if !s.CreatedAt().Equal(created) {
		t.Errorf("CreatedAt() = %v, want %v", s.CreatedAt(), created)
	}
}

func TestNewPerformance_IDFromDate(t *testing.T) {
	date := time.Date(2025, 3, 1, 20, 30, 0, 0, time.UTC)
	p := NewPerformance(date)
	want := "performance_2025-03-01T20:30:00Z"
	if p.ID() != want {
		t.Errorf("ID() = %q, want %q", p.ID(), want)
	}
}

func TestPreset_ParametersJSON(t *testing.T) {
	p := NewPreset("fx/reverb", []Parameter{{Name: "mix", Value: 0.4}, {Name: "decay", Value: 2}}, "hall", "hall")
	want := `[{"name":"mix","value":0.4},{"name":"decay","value":2}]`
	if got := p.ParametersJSON(); got != want {
		t.Errorf("ParametersJSON() = %s, want %s", got, want)
	}

	empty := NewPreset("fx/reverb", nil, "hall", "hall")
	if got := empty.ParametersJSON(); got != "[]" {
		t.Errorf("ParametersJSON() = %s, want []", got)
	}
}

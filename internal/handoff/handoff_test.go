package handoff

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"garden_irrigation/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "handoff"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStore_CoordinatesRoundTripFormat(t *testing.T) {
	s := newStore(t)
	want := models.Coordinates{Latitude: 45.365977, Longitude: -75.602712}

	if err := s.WriteCoordinates(want); err != nil {
		t.Fatalf("WriteCoordinates: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, CoordsFile))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(raw) != "45.365977, -75.602712" {
		t.Fatalf("file content = %q", raw)
	}

	got, err := s.ReadCoordinates()
	if err != nil || got != want {
		t.Fatalf("ReadCoordinates() = %+v, %v", got, err)
	}
}

func TestStore_Countdown(t *testing.T) {
	s := newStore(t)
	if _, err := s.ReadCountdown(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.WriteCountdown(3600); err != nil {
		t.Fatalf("WriteCountdown: %v", err)
	}
	if err := s.WriteCountdown(42); err != nil {
		t.Fatalf("WriteCountdown: %v", err)
	}
	got, err := s.ReadCountdown()
	if err != nil || got != 42 {
		t.Fatalf("ReadCountdown() = %d, %v", got, err)
	}
}

func TestStore_Report(t *testing.T) {
	s := newStore(t)
	first := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	if err := s.WriteReport(first, first.Add(6*time.Minute)); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(s.dir, ReportFile))
	if !strings.Contains(string(raw), "2024-06-01T10:36:00Z") {
		t.Fatalf("report = %q", raw)
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"45.1, -75.2", false},
		{" 45.1,-75.2\n", false},
		{"45.1", true},
		{"north, west", true},
		{"95, 10", true},
		{"45, 190", true},
	}
	for _, tc := range tests {
		_, err := ParseCoordinates(tc.raw)
		if tc.wantErr && !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseCoordinates(%q) err = %v, want ErrMalformed", tc.raw, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("ParseCoordinates(%q) unexpected err %v", tc.raw, err)
		}
	}
}

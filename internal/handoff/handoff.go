// Package handoff stores the coordinate and countdown records shared with
// other processes on the same host as small text files.
package handoff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"garden_irrigation/internal/models"
)

// File names inside the handoff directory.
const (
	CoordsFile    = "coords.txt"
	CountdownFile = "countdown.txt"
	ReportFile    = "10degsun.txt"
	lockFile      = ".handoff.lock"
)

var (
	// ErrNotFound is returned when a record was never written.
	ErrNotFound = errors.New("handoff record not found")
	// ErrMalformed is returned when a record cannot be parsed.
	ErrMalformed = errors.New("malformed handoff record")
)

// Store reads and writes handoff records. The mutex serializes callers in
// this process; the file lock serializes processes.
type Store struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore creates dir when needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create handoff dir %q: %w", dir, err)
	}
	return &Store{dir: dir, lock: flock.New(filepath.Join(dir, lockFile))}, nil
}

// WriteCoordinates stores "lat, lon".
func (s *Store) WriteCoordinates(c models.Coordinates) error {
	return s.write(CoordsFile, fmt.Sprintf("%s, %s", formatFloat(c.Latitude), formatFloat(c.Longitude)))
}

// ReadCoordinates parses the last written coordinates.
func (s *Store) ReadCoordinates() (models.Coordinates, error) {
	raw, err := s.read(CoordsFile)
	if err != nil {
		return models.Coordinates{}, err
	}
	return ParseCoordinates(raw)
}

// WriteCountdown stores the seconds until the solar window opens.
func (s *Store) WriteCountdown(seconds int64) error {
	return s.write(CountdownFile, strconv.FormatInt(seconds, 10))
}

// ReadCountdown returns the last written countdown.
func (s *Store) ReadCountdown() (int64, error) {
	raw, err := s.read(CountdownFile)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: countdown %q", ErrMalformed, raw)
	}
	return n, nil
}

// WriteReport stores the first and last in-band instants in readable form.
func (s *Store) WriteReport(first, last time.Time) error {
	body := fmt.Sprintf("First time at 10-11 degrees: %s\nLast time at 10-11 degrees: %s\n",
		first.Format(time.RFC3339), last.Format(time.RFC3339))
	return s.write(ReportFile, body)
}

// ParseCoordinates parses "lat, lon".
func ParseCoordinates(raw string) (models.Coordinates, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 2 {
		return models.Coordinates{}, fmt.Errorf("%w: coordinates %q", ErrMalformed, raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return models.Coordinates{}, fmt.Errorf("%w: latitude %q", ErrMalformed, parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lon < -180 || lon > 180 {
		return models.Coordinates{}, fmt.Errorf("%w: longitude %q", ErrMalformed, parts[1])
	}
	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// write replaces name atomically (temp file + rename) under the exclusive lock.
func (s *Store) write(name, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock handoff: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(s.dir, name+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *Store) read(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return "", fmt.Errorf("lock handoff: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

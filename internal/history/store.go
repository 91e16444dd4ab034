package history

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"spot-price-panel/internal/interval"
)

// ErrNoHistory indicates no usable persisted history exists: missing file,
// truncated write, or failed validation. Callers reset to an empty record.
var ErrNoHistory = errors.New("history: no usable record")

// recordSize is the exact on-disk size of a Record.
var recordSize = binary.Size(Record{})

// Store persists the rolling-average record as a fixed-size binary file.
type Store struct {
	path   string
	logger zerolog.Logger
}

// NewStore creates a store writing to path.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "history_store").Logger(),
	}
}

// Load reads and validates the persisted record. Every violation is a soft
// failure reported as ErrNoHistory, never a crash.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, ErrNoHistory
	}
	if len(data) != recordSize {
		s.logger.Warn().Int("size", len(data)).Int("expected", recordSize).Msg("history file size mismatch")
		return nil, ErrNoHistory
	}

	var record Record
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &record); err != nil {
		return nil, ErrNoHistory
	}
	if err := validate(&record); err != nil {
		s.logger.Warn().Err(err).Msg("discarding invalid history record")
		return nil, ErrNoHistory
	}
	return &record, nil
}

// Save writes the full record atomically: a partial write never replaces the
// previous file, and a torn temp file fails the size check on the next load.
func (s *Store) Save(record *Record) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, record); err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write history record: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history record: %w", err)
	}
	return nil
}

func validate(r *Record) error {
	if r.Magic != Magic {
		return fmt.Errorf("bad magic %#x", r.Magic)
	}
	if r.Version != Version {
		return fmt.Errorf("unsupported version %d", r.Version)
	}

	resolution := int(r.ResolutionMinutes)
	if interval.NormalizeResolution(resolution) != resolution {
		return fmt.Errorf("unsupported resolution %d", resolution)
	}
	if int(r.WindowSamples) != WindowForResolution(resolution) {
		return fmt.Errorf("window %d does not match resolution %d", r.WindowSamples, resolution)
	}
	if r.Head >= r.WindowSamples {
		return fmt.Errorf("cursor %d out of range", r.Head)
	}
	if r.Count > r.WindowSamples {
		return fmt.Errorf("count %d exceeds window %d", r.Count, r.WindowSamples)
	}
	return nil
}

// Package logstore is the append-only CSV log collaborator: watering
// history, air temperature/humidity samples and soil-moisture samples, with
// line-count rotation. The files keep the layout of the original
// installation (", " separator, second-precision timestamps) so existing
// histories stay readable.
package logstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/plateforme/homegarden/internal/model"
)

const (
	wateringFile = "arrosage_log.csv"
	airFile      = "temp_humidity_log.csv"
	soilFile     = "soil_moisture_log.csv"

	wateringMaxLines = 10000
	sampleMaxLines   = 5000

	timeLayout = "2006-01-02 15:04:05"
)

// Store appends to the three CSV logs. Safe for concurrent use; each file
// has its own lock so a slow rotation on one log does not stall the others.
type Store struct {
	dir string

	wateringMu sync.Mutex
	airMu      sync.Mutex
	soilMu     sync.Mutex
}

// New creates the log directory and the three files when missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	s := &Store{dir: dir}
	for _, name := range []string{wateringFile, airFile, soilFile} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		f.Close()
	}
	return s, nil
}

// AppendWatering records one watering event.
func (s *Store) AppendWatering(evt model.WateringEvent) error {
	s.wateringMu.Lock()
	defer s.wateringMu.Unlock()
	line := fmt.Sprintf("%s, %g\n", evt.StartTime.Format(timeLayout), evt.DurationSeconds)
	return s.appendAndRotate(wateringFile, line, wateringMaxLines)
}

// AppendSensorSample records one air temperature/humidity sample.
func (s *Store) AppendSensorSample(t time.Time, temperature, humidity float64) error {
	s.airMu.Lock()
	defer s.airMu.Unlock()
	line := fmt.Sprintf("%s, %g, %g\n", t.Format(timeLayout), temperature, humidity)
	return s.appendAndRotate(airFile, line, sampleMaxLines)
}

// AppendSoilSample records one soil-moisture sample.
func (s *Store) AppendSoilSample(t time.Time, moisture float64) error {
	s.soilMu.Lock()
	defer s.soilMu.Unlock()
	line := fmt.Sprintf("%s, %g\n", t.Format(timeLayout), moisture)
	return s.appendAndRotate(soilFile, line, sampleMaxLines)
}

// appendAndRotate appends the line, then trims the file to maxLines when it
// overflows, moving the trimmed head into a *_backup.csv next to it.
func (s *Store) appendAndRotate(name, line string, maxLines int) error {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return rotate(path, maxLines)
}

func rotate(path string, maxLines int) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := splitLines(string(raw))
	if len(lines) <= maxLines {
		return nil
	}

	head := lines[:len(lines)-maxLines]
	tail := lines[len(lines)-maxLines:]

	backup := strings.TrimSuffix(path, ".csv") + "_backup.csv"
	bf, err := os.OpenFile(backup, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := bf.WriteString(strings.Join(head, "\n") + "\n"); err != nil {
		bf.Close()
		return err
	}
	if err := bf.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(tail, "\n")+"\n"), 0o644)
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PIDFile records a running pushd instance for the stop and status
// commands.
type PIDFile struct {
	PID         int       `json:"pid"`
	StartTime   time.Time `json:"startTime"`
	Version     string    `json:"version,omitempty"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	EndpointURL string    `json:"endpointUrl,omitempty"`
}

// DefaultPIDPath returns the default PID file location (~/.pushd/pushd.pid).
func DefaultPIDPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pushd/pushd.pid"
	}
	return filepath.Join(home, ".pushd", "pushd.pid")
}

// WritePIDFile writes the PID file atomically, creating the parent
// directory if needed.
func WritePIDFile(path string, info *PIDFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating PID file directory: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling PID file: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming PID file: %w", err)
	}
	return nil
}

// ReadPIDFile reads and parses the PID file at path.
func ReadPIDFile(path string) (*PIDFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("PID file not found: %s", path)
		}
		return nil, fmt.Errorf("reading PID file: %w", err)
	}
	var info PIDFile
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing PID file: %w", err)
	}
	return &info, nil
}

// RemovePIDFile removes the PID file. A missing file is not an error.
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// IsRunning checks whether the recorded process still exists.
func (p *PIDFile) IsRunning() bool {
	if p.PID <= 0 {
		return false
	}
	return checkProcessRunning(p.PID)
}

// Uptime returns the duration since the process started.
func (p *PIDFile) Uptime() time.Duration {
	if p.StartTime.IsZero() {
		return 0
	}
	return time.Since(p.StartTime)
}

// FormatUptime renders the uptime for human output.
func (p *PIDFile) FormatUptime() string {
	d := p.Uptime()
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// ServerURL returns the base URL of the recorded server.
func (p *PIDFile) ServerURL() string {
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, p.Port)
}

package pairing

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// pairingFileName is the file under the data directory holding the
// claimed identity
const pairingFileName = "pairing.yaml"

// Pairing is the locally persisted claim
type Pairing struct {
	DisplayID string `yaml:"displayId"`
	TenantID  string `yaml:"tenantId"`
	Name      string `yaml:"name"`
}

// File persists the pairing under the host's data directory
type File struct {
	path string
}

// NewFile creates a pairing file handle in the given data directory
func NewFile(dataDir string) *File {
	return &File{path: filepath.Join(dataDir, pairingFileName)}
}

// Load returns the persisted pairing, or nil when none exists
func (f *File) Load() (*Pairing, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading pairing file: %w", err)
	}

	var p Pairing
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("error parsing pairing file: %w", err)
	}
	if p.DisplayID == "" {
		return nil, nil
	}
	return &p, nil
}

// Save writes the pairing, creating the data directory if needed
func (f *File) Save(p *Pairing) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("error creating data directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("error encoding pairing: %w", err)
	}

	// Write-then-rename so a crash never leaves a torn pairing file
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("error writing pairing file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// Clear removes the persisted pairing; safe when none exists
func (f *File) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

package payload

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vsinha/csatrack/pkg/domain/entities"
)

// FileLoader reads and writes raw customer payload JSON documents
type FileLoader struct{}

// NewFileLoader creates a new payload file loader
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load reads a payload from a file. A path of "-" reads standard input.
func (l *FileLoader) Load(path string) (*entities.CustomerPayload, error) {
	if path == "-" {
		return l.Decode(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload %s: %w", path, err)
	}
	defer file.Close()

	payload, err := l.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("payload %s: %w", path, err)
	}
	return payload, nil
}

// Decode parses a payload document. Shape violations wrap entities.ErrInvalidInputShape.
func (l *FileLoader) Decode(r io.Reader) (*entities.CustomerPayload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	var payload entities.CustomerPayload
	if err := payload.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Save writes payload as indented JSON, creating parent directories as needed
func (l *FileLoader) Save(path string, payload *entities.CustomerPayload) error {
	if payload == nil {
		return fmt.Errorf("payload cannot be nil")
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write payload %s: %w", path, err)
	}
	return nil
}

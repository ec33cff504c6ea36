package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/validation"
)

// Bootstrap is the initial record list of the authoritative node
type Bootstrap struct {
	Records []models.Record `yaml:"records"`
}

// LoadBootstrap reads the initial records from a YAML file.
// Missing ids are assigned by the repository; empty status means PENDING.
func LoadBootstrap(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap file: %w", err)
	}

	var b Bootstrap
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&b); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse bootstrap YAML: %w", err)
	}

	for i, rec := range b.Records {
		if err := validation.ValidateRecord(rec); err != nil {
			return nil, fmt.Errorf("%w: bootstrap record %d: %w", ErrInvalidConfig, i, err)
		}
		if rec.Status != "" && !rec.Status.Valid() {
			return nil, fmt.Errorf("%w: bootstrap record %d: unknown status %q", ErrInvalidConfig, i, rec.Status)
		}
	}

	return models.CloneRecords(b.Records), nil
}

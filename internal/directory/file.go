package directory

import (
	"fmt"
	"os"

	"github.com/cuongbtq/visit-metrics/internal/domain"
	"gopkg.in/yaml.v3"
)

type fileContents struct {
	Stores []domain.StoreRecord `yaml:"stores"`
}

// LoadFile reads a YAML store master of the form
//
//	stores:
//	  - store_id: S00339218
//	    store_name: Retail Hub A
//	    area_code: "1001"
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory file: %w", err)
	}

	var contents fileContents
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse store directory file: %w", err)
	}

	d, err := New(contents.Stores)
	if err != nil {
		return nil, fmt.Errorf("invalid store directory file: %w", err)
	}

	return d, nil
}

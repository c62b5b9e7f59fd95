package seed

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a seed file and returns its media ids in file order with
// duplicates removed. A missing file yields no ids.
func Load(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Seed file not found, nothing to import", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) ([]int64, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(&file); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(file.Items))
	ids := make([]int64, 0, len(file.Items))
	for _, entry := range file.Items {
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true
		ids = append(ids, entry.ID)
	}

	return ids, nil
}

func validate(file *File) error {
	for i, entry := range file.Items {
		if entry.ID <= 0 {
			return fmt.Errorf("invalid media id at index %d: %d", i, entry.ID)
		}
	}
	return nil
}

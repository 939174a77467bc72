package task

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Open330/open-agent-contribution-sub003/internal/errors"
)

// File is the on-disk task list handed over by discovery.
type File struct {
	// Version is the file format version (currently "1")
	Version string `yaml:"version"`
	// Source names the discovery source that produced the list (optional)
	Source string `yaml:"source,omitempty"`
	// Tasks is the proposed work, in no particular order
	Tasks []Task `yaml:"tasks"`
}

// LoadFile reads and validates a task list from a YAML file.
func LoadFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}

	if err := validateTasks(file.Tasks); err != nil {
		return nil, err
	}

	for i := range file.Tasks {
		if file.Tasks[i].Source == "" {
			file.Tasks[i].Source = file.Source
		}
		if file.Tasks[i].DiscoveredAt.IsZero() {
			file.Tasks[i].DiscoveredAt = time.Now()
		}
	}
	return file.Tasks, nil
}

func validateTasks(tasks []Task) error {
	seen := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		switch {
		case t.ID == "":
			return errors.NewValidationError("task id is required").
				WithField("tasks").WithValue(fmt.Sprintf("index %d", i))
		case t.Title == "":
			return errors.NewValidationError("task title is required").
				WithField("tasks").WithValue(t.ID)
		case t.Priority < 0:
			return errors.NewValidationError("priority must not be negative").
				WithField("tasks").WithValue(t.ID)
		}
		if t.Complexity != "" && !t.Complexity.Valid() {
			return errors.NewValidationError(fmt.Sprintf("unknown complexity %q", t.Complexity)).
				WithField("tasks").WithValue(t.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return errors.NewValidationError("duplicate task id").
				WithField("tasks").WithValue(t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

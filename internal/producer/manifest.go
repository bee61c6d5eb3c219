package producer

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vehicle-signal/vis-server/internal/validator"
)

// PeriodicTask is one entry of the periodic producer manifest: a signal
// path, the value it reports on each firing (when Value is unset, a counter
// starting at zero is reported instead), and exactly one of an
// interval (milliseconds, driven by a ticker) or a cron schedule (driven
// by robfig/cron).
type PeriodicTask struct {
	Path           string          `yaml:"path" validate:"required,vispath"`
	Value          json.RawMessage `yaml:"value"`
	IntervalMillis int64           `yaml:"intervalMs,omitempty" validate:"omitempty,gt=0"`
	Cron           string          `yaml:"cron,omitempty"`
}

// Manifest is the top-level shape of the periodic producer manifest file.
type Manifest struct {
	Tasks []PeriodicTask `yaml:"tasks"`
}

// LoadManifest reads and validates a periodic producer manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading producer manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing producer manifest: %w", err)
	}

	for i, task := range m.Tasks {
		if err := validator.ValidateStruct(task); err != nil {
			return nil, fmt.Errorf("producer manifest task %d: %w", i, err)
		}
		if task.IntervalMillis == 0 && task.Cron == "" {
			return nil, fmt.Errorf("producer manifest task %d (%s): must set intervalMs or cron", i, task.Path)
		}
		if task.IntervalMillis != 0 && task.Cron != "" {
			return nil, fmt.Errorf("producer manifest task %d (%s): set only one of intervalMs or cron", i, task.Path)
		}
	}

	return &m, nil
}

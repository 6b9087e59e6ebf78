package flowspec

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/buddybot-backend/internal/domain/flows"
)

//go:embed templates/*.yaml
var templatesFS embed.FS

// FlowSpec is a flow template as authored in YAML.
type FlowSpec struct {
	Title                    string             `yaml:"title"`
	Description              string             `yaml:"description"`
	Category                 string             `yaml:"category"`
	Tags                     []string           `yaml:"tags"`
	Priority                 int                `yaml:"priority"`
	Required                 bool               `yaml:"required"`
	EstimatedDurationMinutes int                `yaml:"estimated_duration_minutes"`
	Settings                 flows.FlowSettings `yaml:"settings"`
	Steps                    []StepSpec         `yaml:"steps"`
}

type StepSpec struct {
	Title                    string          `yaml:"title"`
	Description              string          `yaml:"description"`
	EstimatedDurationMinutes int             `yaml:"estimated_duration_minutes"`
	Components               []ComponentSpec `yaml:"components"`
}

type ComponentSpec struct {
	Type     string         `yaml:"type"`
	Title    string         `yaml:"title"`
	Required *bool          `yaml:"required"`
	Settings map[string]any `yaml:"settings"`
}

// IsRequired defaults to true when the template omits the flag.
func (c ComponentSpec) IsRequired() bool {
	return c.Required == nil || *c.Required
}

func Parse(r io.Reader) (*FlowSpec, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var spec FlowSpec
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("flow template is empty")
		}
		return nil, fmt.Errorf("parse flow template: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func LoadFile(path string) (*FlowSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Builtin loads a template shipped with the binary, by file name without extension.
func Builtin(name string) (*FlowSpec, error) {
	f, err := templatesFS.Open("templates/" + strings.TrimSuffix(name, ".yaml") + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown builtin template %q", name)
	}
	defer f.Close()
	return Parse(f)
}

// BuiltinNames lists the templates shipped with the binary.
func BuiltinNames() []string {
	entries, err := templatesFS.ReadDir("templates")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return out
}

// Validate checks the template shape. Field-level rules (title length, settings
// ranges) are enforced again by the authoring aggregate on import.
func (s *FlowSpec) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Title) == "" {
		errs = append(errs, fmt.Errorf("title is required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, fmt.Errorf("at least one step is required"))
	}
	for i, st := range s.Steps {
		if strings.TrimSpace(st.Title) == "" {
			errs = append(errs, fmt.Errorf("steps[%d]: title is required", i))
		}
		for j, c := range st.Components {
			if _, ok := flows.ParseComponentType(c.Type); !ok {
				errs = append(errs, fmt.Errorf("steps[%d].components[%d]: unknown type %q", i, j, c.Type))
			}
			if strings.TrimSpace(c.Title) == "" {
				errs = append(errs, fmt.Errorf("steps[%d].components[%d]: title is required", i, j))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *FlowSpec) ComponentCount() int {
	n := 0
	for _, st := range s.Steps {
		n += len(st.Components)
	}
	return n
}

// Package forms declares the flows driven by the wizard engine. Flows are
// described in YAML, compiled into wizard step definitions, and can be
// overridden by files in a user-supplied directory.
package forms

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/wizard"
	"gopkg.in/yaml.v3"
)

//go:embed flows/*.yml
var builtinFS embed.FS

// Schema is the YAML document describing one flow.
type Schema struct {
	Flow            string       `yaml:"flow"`
	Title           string       `yaml:"title"`
	ReferencePrefix string       `yaml:"reference_prefix"`
	Steps           []StepSchema `yaml:"steps"`
}

// StepSchema describes one step.
type StepSchema struct {
	ID     string        `yaml:"id"`
	Title  string        `yaml:"title"`
	Fields []FieldSchema `yaml:"fields"`
	Rules  []RuleSchema  `yaml:"rules,omitempty"`
}

// FieldSchema describes one field.
type FieldSchema struct {
	Key         string   `yaml:"key"`
	Label       string   `yaml:"label"`
	Kind        string   `yaml:"kind"`
	Required    bool     `yaml:"required,omitempty"`
	Options     []string `yaml:"options,omitempty"`
	Placeholder string   `yaml:"placeholder,omitempty"`
	Multiline   bool     `yaml:"multiline,omitempty"`
	Format      string   `yaml:"format,omitempty"`
}

// RuleSchema describes a cross-field rule.
type RuleSchema struct {
	Rule string `yaml:"rule"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Flow is a compiled flow ready to back an engine.
type Flow struct {
	Name            string
	Title           string
	ReferencePrefix string
	Source          []byte // YAML document the flow was compiled from
	steps           []wizard.StepDefinition
}

// Steps returns the compiled step definitions.
func (f *Flow) Steps() []wizard.StepDefinition {
	out := make([]wizard.StepDefinition, len(f.steps))
	copy(out, f.steps)
	return out
}

// NewEngine creates an engine for this flow.
func (f *Flow) NewEngine(opts ...wizard.Option) (*wizard.Engine, error) {
	opts = append([]wizard.Option{wizard.WithReferencePrefix(f.ReferencePrefix)}, opts...)
	return wizard.New(f.Name, f.Steps(), opts...)
}

// Registry holds compiled flows by name.
type Registry struct {
	flows map[string]*Flow
}

// Get returns the flow with the given name.
func (r *Registry) Get(name string) (*Flow, error) {
	f, ok := r.flows[name]
	if !ok {
		return nil, fmt.Errorf("unknown flow %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f, nil
}

// Names returns the flow names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.flows))
	for n := range r.flows {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Builtin returns the registry of embedded flows.
func Builtin() (*Registry, error) {
	return Load("")
}

// Load compiles the embedded flows, then any *.yml files in dir. A file in dir
// replaces the embedded flow with the same name. An empty dir loads only the
// embedded flows.
func Load(dir string) (*Registry, error) {
	r := &Registry{flows: make(map[string]*Flow)}

	entries, err := fs.Glob(builtinFS, "flows/*.yml")
	if err != nil {
		return nil, fmt.Errorf("listing builtin flows: %w", err)
	}
	for _, name := range entries {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading builtin flow %s: %w", name, err)
		}
		if err := r.add(name, data); err != nil {
			return nil, err
		}
	}

	if dir == "" {
		return r, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("listing flows in %s: %w", dir, err)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading flow %s: %w", path, err)
		}
		if err := r.add(path, data); err != nil {
			return nil, err
		}
		logger.Debug("Loaded flow override from %s", path)
	}
	return r, nil
}

func (r *Registry) add(source string, data []byte) error {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing flow %s: %w", source, err)
	}
	f, err := Compile(s)
	if err != nil {
		return fmt.Errorf("compiling flow %s: %w", source, err)
	}
	f.Source = data
	r.flows[f.Name] = f
	return nil
}

// Compile turns a schema into a flow. The resulting steps are also checked by
// wizard.New so schema errors surface here rather than when a host starts.
func Compile(s Schema) (*Flow, error) {
	if s.Flow == "" {
		return nil, errors.New("flow name is required")
	}

	steps := make([]wizard.StepDefinition, 0, len(s.Steps))
	for _, ss := range s.Steps {
		step := wizard.StepDefinition{
			ID:    ss.ID,
			Title: ss.Title,
		}
		for _, fd := range ss.Fields {
			kind, ok := wizard.ParseFieldKind(fd.Kind)
			if !ok {
				return nil, fmt.Errorf("field %q: unknown kind %q", fd.Key, fd.Kind)
			}
			field := wizard.Field{
				Key:         fd.Key,
				Label:       fd.Label,
				Kind:        kind,
				Required:    fd.Required,
				Options:     fd.Options,
				Placeholder: fd.Placeholder,
				Multiline:   fd.Multiline,
			}
			if field.Label == "" {
				field.Label = fd.Key
			}
			if fd.Format != "" {
				check, ok := formats[fd.Format]
				if !ok {
					return nil, fmt.Errorf("field %q: unknown format %q", fd.Key, fd.Format)
				}
				if kind != wizard.KindText {
					return nil, fmt.Errorf("field %q: format %q applies to text fields only", fd.Key, fd.Format)
				}
				field.Check = check
			}
			step.Fields = append(step.Fields, field)
		}
		if len(ss.Rules) > 0 {
			validate, err := compileRules(ss)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", ss.ID, err)
			}
			step.Validate = validate
		}
		steps = append(steps, step)
	}

	if _, err := wizard.New(s.Flow, steps); err != nil {
		return nil, err
	}

	title := s.Title
	if title == "" {
		title = s.Flow
	}
	prefix := s.ReferencePrefix
	if prefix == "" {
		prefix = wizard.DefaultPrefix(s.Flow)
	}
	return &Flow{
		Name:            s.Flow,
		Title:           title,
		ReferencePrefix: prefix,
		steps:           steps,
	}, nil
}

package tooling

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// OptionSource records where an option value came from.
type OptionSource int

const (
	SourceDefault OptionSource = iota
	SourceCommandLine
	SourceConfigFile
)

func (s OptionSource) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceCommandLine:
		return "command-line"
	case SourceConfigFile:
		return "config-file"
	default:
		return "unknown"
	}
}

// CheckerOptVal is a checker-specific option value: a bool, string or int.
type CheckerOptVal struct {
	val any
}

func BoolOpt(v bool) CheckerOptVal     { return CheckerOptVal{v} }
func StringOpt(v string) CheckerOptVal { return CheckerOptVal{v} }
func IntOpt(v int) CheckerOptVal       { return CheckerOptVal{v} }

func (v CheckerOptVal) Bool() (bool, bool)     { b, ok := v.val.(bool); return b, ok }
func (v CheckerOptVal) String() (string, bool) { s, ok := v.val.(string); return s, ok }
func (v CheckerOptVal) Int() (int, bool)       { i, ok := v.val.(int); return i, ok }

func (v *CheckerOptVal) UnmarshalYAML(unmarshal func(any) error) error {
	var b bool
	if err := unmarshal(&b); err == nil {
		v.val = b
		return nil
	}
	var i int
	if err := unmarshal(&i); err == nil {
		v.val = i
		return nil
	}
	var s string
	if err := unmarshal(&s); err == nil {
		v.val = s
		return nil
	}
	return fmt.Errorf("checker option must be a bool, string or int")
}

// Options is the configuration surface of the tool.
type Options struct {
	// Checkers filter, a comma-separated glob list.
	Checkers string `yaml:"checkers"`

	// Analyses filter, a comma-separated glob list.
	Analyses string `yaml:"analyses"`

	// Header file extensions.
	HeaderExtensions []string `yaml:"header-extensions"`

	// Implementation file extensions.
	ImplExtensions []string `yaml:"impl-extensions"`

	// Checker-specific options.
	CheckOpts map[string]CheckerOptVal `yaml:"check-opts"`

	// The user running the tool.
	User string `yaml:"user"`

	// Use color in output.
	UseColor bool `yaml:"use-color"`

	// View the control flow graph of each analyzed function.
	ViewCFG bool `yaml:"view-cfg"`

	// Dump the control flow graph of each analyzed function.
	DumpCFG bool `yaml:"dump-cfg"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Checkers:         "",
		Analyses:         "",
		HeaderExtensions: []string{"h", "hh", "hpp", "hxx"},
		ImplExtensions:   []string{"go"},
		CheckOpts:        map[string]CheckerOptVal{},
		User:             "unknown",
	}
}

// OptionsProvider hands out options per analyzed file and tracks the
// source of checker options.
type OptionsProvider interface {
	OptionsFor(file string) Options
	CheckerOptionSource(option string) OptionSource
	SetCheckerOption(option string, value CheckerOptVal)
}

// DefaultOptionsProvider serves the built-in defaults.
type DefaultOptionsProvider struct {
	Opts Options
}

func NewDefaultOptionsProvider() *DefaultOptionsProvider {
	return &DefaultOptionsProvider{Opts: DefaultOptions()}
}

func (p *DefaultOptionsProvider) OptionsFor(string) Options { return p.Opts }

func (p *DefaultOptionsProvider) CheckerOptionSource(string) OptionSource {
	return SourceDefault
}

func (p *DefaultOptionsProvider) SetCheckerOption(option string, value CheckerOptVal) {
	p.Opts.CheckOpts[option] = value
}

// CommandLineOptionsProvider layers command-line overrides over the defaults.
type CommandLineOptionsProvider struct {
	DefaultOptionsProvider
	overridden map[string]bool
}

func NewCommandLineOptionsProvider() *CommandLineOptionsProvider {
	return &CommandLineOptionsProvider{
		DefaultOptionsProvider: *NewDefaultOptionsProvider(),
		overridden:             make(map[string]bool),
	}
}

func (p *CommandLineOptionsProvider) CheckerOptionSource(option string) OptionSource {
	if p.overridden[option] {
		return SourceCommandLine
	}
	return SourceDefault
}

func (p *CommandLineOptionsProvider) SetCheckerOption(option string, value CheckerOptVal) {
	p.overridden[option] = true
	p.Opts.CheckOpts[option] = value
}

// LoadOptions reads options from a YAML config file, layered over the
// defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return opts, nil
}

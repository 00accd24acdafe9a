// Package catalogue holds the static language catalogue shared by the
// batch executor and the sandbox runner.
package catalogue

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// Language describes one supported language: where its source lives inside
// the work directory and how to compile and run it.
type Language struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	SourceFile string `yaml:"sourceFile" json:"sourceFile"`
	// CompileCmd compiles the source, or syntax-checks it for interpreted
	// languages. Empty means no compile step at all.
	CompileCmd string `yaml:"compileCmd" json:"compileCmd,omitempty"`
	ExecuteCmd string `yaml:"executeCmd" json:"executeCmd"`
}

// CompileArgs returns the compile command split into argv form.
func (l Language) CompileArgs() ([]string, error) {
	if l.CompileCmd == "" {
		return nil, nil
	}
	args, err := shlex.Split(l.CompileCmd)
	if err != nil {
		return nil, fmt.Errorf("split compile command for %s: %w", l.ID, err)
	}
	return args, nil
}

// ExecuteArgs returns the execute command split into argv form.
func (l Language) ExecuteArgs() ([]string, error) {
	args, err := shlex.Split(l.ExecuteCmd)
	if err != nil {
		return nil, fmt.Errorf("split execute command for %s: %w", l.ID, err)
	}
	return args, nil
}

// Catalogue is an immutable language registry initialised once at boot.
type Catalogue struct {
	languages map[string]Language
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	return New(builtin)
}

// New builds a catalogue from explicit entries.
func New(languages []Language) *Catalogue {
	m := make(map[string]Language, len(languages))
	for _, lang := range languages {
		m[lang.ID] = lang
	}
	return &Catalogue{languages: m}
}

// LoadFile builds a catalogue from a YAML file, replacing the built-ins.
func LoadFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language catalogue: %w", err)
	}
	var parsed struct {
		Languages []Language `yaml:"languages"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse language catalogue: %w", err)
	}
	if len(parsed.Languages) == 0 {
		return nil, fmt.Errorf("language catalogue %s defines no languages", path)
	}
	for _, lang := range parsed.Languages {
		if lang.ID == "" || lang.SourceFile == "" || lang.ExecuteCmd == "" {
			return nil, fmt.Errorf("language entry %q is incomplete", lang.ID)
		}
	}
	return New(parsed.Languages), nil
}

// Get looks up a language by tag.
func (c *Catalogue) Get(id string) (Language, bool) {
	lang, ok := c.languages[id]
	return lang, ok
}

// Has reports whether the tag is registered.
func (c *Catalogue) Has(id string) bool {
	_, ok := c.languages[id]
	return ok
}

// All returns the catalogue entries sorted by tag.
func (c *Catalogue) All() []Language {
	out := make([]Language, 0, len(c.languages))
	for _, lang := range c.languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var builtin = []Language{
	{
		ID:         "c",
		Name:       "C (GCC 13)",
		SourceFile: "main.c",
		CompileCmd: "gcc -O2 -std=c17 -o program main.c -lm",
		ExecuteCmd: "./program",
	},
	{
		ID:         "cpp",
		Name:       "C++ (G++ 13)",
		SourceFile: "main.cpp",
		CompileCmd: "g++ -O2 -std=c++17 -o program main.cpp",
		ExecuteCmd: "./program",
	},
	{
		ID:         "python",
		Name:       "Python 3.11",
		SourceFile: "main.py",
		CompileCmd: "python3 -m py_compile main.py",
		ExecuteCmd: "python3 main.py",
	},
}

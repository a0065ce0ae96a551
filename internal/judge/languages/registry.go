// Package languages holds the static per-language judging configuration and
// the forbidden-pattern static filter applied before any execution.
package languages

import (
	"regexp"
	"sync"

	appErr "gavel/pkg/errors"
)

// Spec describes one judgeable language: which runtime image executes it,
// how to compile and run it, its default limits, and which source constructs
// are rejected outright.
type Spec struct {
	ID    string `yaml:"id"`
	Image string `yaml:"image"`

	SourceFile string `yaml:"sourceFile"`
	BinaryFile string `yaml:"binaryFile"`

	// CompileCmdTpl is empty for interpreted languages. Templates expand
	// {src} and {bin} inside the sandbox work dir.
	CompileCmdTpl string `yaml:"compileCmdTpl"`
	RunCmdTpl     string `yaml:"runCmdTpl"`

	TimeLimitMs int64 `yaml:"timeLimitMs"`
	MemoryMB    int64 `yaml:"memoryMB"`

	// ForbiddenPatterns are regular expressions matched against raw source
	// text. This is a second line of defense on top of sandbox isolation,
	// not a substitute for it.
	ForbiddenPatterns []string `yaml:"forbiddenPatterns"`
}

// Compiled reports whether the language has a compile step.
func (s Spec) Compiled() bool {
	return s.CompileCmdTpl != ""
}

// Registry is read-only process-wide configuration; concurrent reads need
// no locking once constructed.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]Spec
	patterns map[string][]*regexp.Regexp
}

// NewRegistry builds a registry from the given specs, compiling every
// forbidden pattern up front so a bad pattern fails at startup, not at
// judge time.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{
		specs:    make(map[string]Spec, len(specs)),
		patterns: make(map[string][]*regexp.Regexp, len(specs)),
	}
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, appErr.ValidationError("language_id", "required")
		}
		if spec.RunCmdTpl == "" {
			return nil, appErr.Newf(appErr.InvalidParams, "language %s has no run command", spec.ID)
		}
		compiled := make([]*regexp.Regexp, 0, len(spec.ForbiddenPatterns))
		for _, raw := range spec.ForbiddenPatterns {
			re, err := regexp.Compile(raw)
			if err != nil {
				return nil, appErr.Wrapf(err, appErr.InvalidParams, "language %s: bad forbidden pattern %q", spec.ID, raw)
			}
			compiled = append(compiled, re)
		}
		r.specs[spec.ID] = spec
		r.patterns[spec.ID] = compiled
	}
	return r, nil
}

// Get returns the spec for a language. Unknown language is an error, never
// a silent default.
func (r *Registry) Get(language string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[language]
	if !ok {
		return Spec{}, appErr.Newf(appErr.LanguageNotSupported, "language %s is not supported", language)
	}
	return spec, nil
}

// Validate scans source text against the language's forbidden-pattern list.
// It returns the matched pattern as the violation reason, or "" when clean.
func (r *Registry) Validate(code, language string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.specs[language]; !ok {
		return "", appErr.Newf(appErr.LanguageNotSupported, "language %s is not supported", language)
	}
	for _, re := range r.patterns[language] {
		if re.MatchString(code) {
			return re.String(), nil
		}
	}
	return "", nil
}

// IDs returns the registered language ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	return ids
}

package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"foodieqa/internal/extract"
	"foodieqa/internal/model"
)

var (
	// ErrUnknownVariant is returned for ids or names not in the registry
	ErrUnknownVariant = errors.New("unknown prompt variant")
	// ErrInvalidSpec is returned by NewRegistry for an incomplete catalog entry
	ErrInvalidSpec = errors.New("invalid prompt variant")
)

var languages = []model.Language{model.LanguageZH, model.LanguageEN}

const (
	formatMarker  = "\x00format\x00"
	contextMarker = "\x00context\x00"
)

type compiledPair struct {
	system, user *template.Template
	// hasContext is false when neither half renders {{.Context}}
	hasContext bool
}

type entry struct {
	spec  Spec
	pairs map[model.Language]compiledPair
}

// Registry is the immutable set of compiled variants. Safe for concurrent use.
type Registry struct {
	entries map[Variant]*entry
	byName  map[string]Variant
}

// NewRegistry compiles and validates specs. Every variant needs a name, a
// known extraction strategy and templates for both languages that render the
// output-format instruction. Strict-letter templates may not ask for the
// sentinel phrase themselves.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{
		entries: make(map[Variant]*entry, len(specs)),
		byName:  make(map[string]Variant, len(specs)),
	}
	for _, s := range specs {
		if _, dup := r.entries[s.Variant]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidSpec, s.Variant)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("%w: %d has no name", ErrInvalidSpec, s.Variant)
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidSpec, s.Name)
		}
		if !s.Extraction.Valid() {
			return nil, fmt.Errorf("%w: %s has extraction strategy %q", ErrInvalidSpec, s.Name, s.Extraction)
		}
		if !s.Augmentation.Valid() {
			return nil, fmt.Errorf("%w: %s has augmentation %q", ErrInvalidSpec, s.Name, s.Augmentation)
		}

		e := &entry{spec: s, pairs: make(map[model.Language]compiledPair, len(languages))}
		for _, lang := range languages {
			pair, ok := s.Templates[lang]
			if !ok || strings.TrimSpace(pair.User) == "" {
				return nil, fmt.Errorf("%w: %s has no %s template", ErrInvalidSpec, s.Name, lang)
			}
			cp, err := compilePair(s, lang, pair)
			if err != nil {
				return nil, err
			}
			e.pairs[lang] = cp
		}
		r.entries[s.Variant] = e
		r.byName[s.Name] = s.Variant
	}
	return r, nil
}

// MustNewRegistry is NewRegistry for static catalogs
func MustNewRegistry(specs []Spec) *Registry {
	r, err := NewRegistry(specs)
	if err != nil {
		panic(err)
	}
	return r
}

var defaultRegistry = MustNewRegistry(Catalog())

// Default returns the registry built from Catalog
func Default() *Registry { return defaultRegistry }

func compilePair(s Spec, lang model.Language, pair Pair) (compiledPair, error) {
	sys, err := template.New(fmt.Sprintf("%s.%s.system", s.Name, lang)).Option("missingkey=error").Parse(pair.System)
	if err != nil {
		return compiledPair{}, fmt.Errorf("%w: %s: %v", ErrInvalidSpec, s.Name, err)
	}
	user, err := template.New(fmt.Sprintf("%s.%s.user", s.Name, lang)).Option("missingkey=error").Parse(pair.User)
	if err != nil {
		return compiledPair{}, fmt.Errorf("%w: %s: %v", ErrInvalidSpec, s.Name, err)
	}
	cp := compiledPair{system: sys, user: user}

	probe := templateData{Question: "q", Choices: "c", Context: contextMarker, Format: formatMarker}
	sysOut, userOut, err := cp.render(probe)
	if err != nil {
		return compiledPair{}, fmt.Errorf("%w: %s: %v", ErrInvalidSpec, s.Name, err)
	}
	both := sysOut + userOut
	if !strings.Contains(both, formatMarker) {
		return compiledPair{}, fmt.Errorf("%w: %s %s template never states the answer format", ErrInvalidSpec, s.Name, lang)
	}
	if s.Extraction == extract.StrictLetter &&
		strings.Contains(strings.ToLower(pair.System+pair.User), strings.ToLower(extract.SentinelPhrase)) {
		return compiledPair{}, fmt.Errorf("%w: %s is strict-letter but asks for %q", ErrInvalidSpec, s.Name, extract.SentinelPhrase)
	}
	cp.hasContext = strings.Contains(both, contextMarker)
	return cp, nil
}

func (cp compiledPair) render(data templateData) (string, string, error) {
	var sys, user bytes.Buffer
	if err := cp.system.Execute(&sys, data); err != nil {
		return "", "", err
	}
	if err := cp.user.Execute(&user, data); err != nil {
		return "", "", err
	}
	return sys.String(), user.String(), nil
}

// Lookup returns the spec of a variant
func (r *Registry) Lookup(v Variant) (Spec, error) {
	e, ok := r.entries[v]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %d", ErrUnknownVariant, v)
	}
	return e.spec, nil
}

// Parse accepts a numeric id or a variant name
func (r *Registry) Parse(s string) (Variant, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if _, ok := r.entries[Variant(n)]; ok {
			return Variant(n), nil
		}
		return 0, fmt.Errorf("%w: %d", ErrUnknownVariant, n)
	}
	if v, ok := r.byName[strings.ToLower(s)]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Specs lists every variant ordered by id
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variant < out[j].Variant })
	return out
}

// Package config resolves named sanitizer profiles.
//
// A profile bundles sanitizer options with optional rewrite-rule files.
// Four profiles are built in; a YAML profiles file can add more or shadow
// a built-in by reusing its name.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/texforge/nbprep/core/errors"
	"github.com/texforge/nbprep/core/sanitize"
)

// DefaultProfile is the profile used when none is named.
const DefaultProfile = "default"

// Profile is a named sanitizer configuration.
type Profile struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Sanitize    sanitize.Options `json:"sanitize"`
	Rules       []string         `json:"rules,omitempty"`
}

// File is a parsed profiles file.
type File struct {
	Profiles []Profile `json:"profiles"`
}

// Builtins returns the built-in profiles in display order.
func Builtins() []Profile {
	return []Profile{
		{
			Name:        DefaultProfile,
			Description: "Unicode normalization only",
			Sanitize:    sanitize.Options{NormalizeUnicode: true},
		},
		{
			Name:        "nbconvert",
			Description: "Unicode normalization plus math delimiter conversion",
			Sanitize:    sanitize.Options{NormalizeUnicode: true, NormalizeMathDelimiters: true},
		},
		{
			Name:        "underscore",
			Description: "Unicode normalization plus underscore escaping",
			Sanitize:    sanitize.Options{NormalizeUnicode: true, EscapeUnderscores: true},
		},
		{
			Name:        "strict",
			Description: "All rewrites enabled",
			Sanitize: sanitize.Options{
				NormalizeUnicode:        true,
				NormalizeMathDelimiters: true,
				EscapeUnderscores:       true,
			},
		},
	}
}

// Load reads a profiles file. Relative rule-file paths are resolved against
// the profiles file's directory, so a profile can ship next to its rules.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &errors.ParseError{
			Path:    path,
			Cell:    -1,
			Message: "invalid profiles YAML: " + err.Error(),
			Err:     err,
		}
	}

	dir := filepath.Dir(path)
	seen := make(map[string]bool, len(f.Profiles))
	for i := range f.Profiles {
		p := &f.Profiles[i]
		if p.Name == "" {
			return nil, errors.NewValidation("profiles", fmt.Sprintf("profile %d has no name", i))
		}
		if seen[p.Name] {
			return nil, errors.NewValidation("profiles", fmt.Sprintf("duplicate profile %q", p.Name))
		}
		seen[p.Name] = true
		for j, r := range p.Rules {
			if r != "" && !filepath.IsAbs(r) {
				p.Rules[j] = filepath.Join(dir, r)
			}
		}
	}
	return &f, nil
}

// Resolve returns the named profile. Profiles from the file shadow built-ins
// of the same name; file may be nil. An empty name means DefaultProfile.
func Resolve(name string, file *File) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	if file != nil {
		for i := range file.Profiles {
			if file.Profiles[i].Name == name {
				p := file.Profiles[i]
				return &p, nil
			}
		}
	}
	for _, p := range Builtins() {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, errors.NewNotFound("profile", name)
}

// All returns the merged profile list for display: built-ins first, with
// file profiles overriding same-named built-ins in place or appended after.
func All(file *File) []Profile {
	out := Builtins()
	if file == nil {
		return out
	}
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Name] = i
	}
	for _, p := range file.Profiles {
		if i, ok := index[p.Name]; ok {
			out[i] = p
		} else {
			out = append(out, p)
		}
	}
	return out
}

package registry

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"txservice/internal/directive"
	"txservice/internal/directives"
)

var directiveName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// UserFile is the on-disk layout of user-defined directives.
type UserFile struct {
	Directives []directives.UserDefinition `yaml:"directives"`
}

// NewUser builds a registry of expression-backed directives. Every
// expression is compiled up front.
func NewUser(defs []directives.UserDefinition) (Registry, error) {
	infos := make([]*directive.Info, 0, len(defs))
	for i, def := range defs {
		if !directiveName.MatchString(def.Name) {
			return nil, fmt.Errorf("registry: user directive #%d: invalid name %q", i+1, def.Name)
		}
		f, err := directives.UserFactory(def)
		if err != nil {
			return nil, fmt.Errorf("registry: user directive %q: %w", def.Name, err)
		}
		infos = append(infos, &directive.Info{
			Name:        def.Name,
			Description: def.Description,
			Scope:       directive.ScopeUser,
			Factory:     f,
		})
	}
	t, err := newTable(infos)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// LoadUser reads a YAML file of user directives. An empty path yields an
// empty registry.
func LoadUser(path string) (Registry, error) {
	if path == "" {
		return NewUser(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	var f UserFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	return NewUser(f.Directives)
}

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"txservice/internal/directive"
	"txservice/internal/directives"
	"txservice/internal/logging"
)

func TestSystemRegistry(t *testing.T) {
	reg := NewSystem()
	info, ok := reg.Get("uppercase")
	require.True(t, ok)
	assert.Equal(t, directive.ScopeSystem, info.Scope)

	_, ok = reg.Get("frobnicate")
	assert.False(t, ok)

	list := reg.List()
	assert.Len(t, list, len(directives.Builtins()))
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name)
	}
}

func TestUserRegistry(t *testing.T) {
	reg, err := NewUser([]directives.UserDefinition{
		{Name: "mask", Description: "masks digits", Expression: `"***"`},
	})
	require.NoError(t, err)
	info, ok := reg.Get("mask")
	require.True(t, ok)
	assert.Equal(t, directive.ScopeUser, info.Scope)
	assert.Equal(t, "mask <column:column>", info.Usage().String())
}

func TestUserRegistryRejects(t *testing.T) {
	cases := map[string][]directives.UserDefinition{
		"bad name":       {{Name: "no spaces", Expression: "value"}},
		"bad expression": {{Name: "x", Expression: "value +"}},
		"duplicate":      {{Name: "x", Expression: "value"}, {Name: "x", Expression: "value"}},
	}
	for name, defs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewUser(defs)
			assert.Error(t, err)
		})
	}
}

func TestLoadUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directives.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
directives:
  - name: redact
    description: replaces the value
    expression: '"[redacted]"'
  - name: uppercase
    expression: value
`), 0o600))

	reg, err := LoadUser(path)
	require.NoError(t, err)
	assert.Len(t, reg.List(), 2)

	empty, err := LoadUser("")
	require.NoError(t, err)
	assert.Empty(t, empty.List())

	_, err = LoadUser(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCompositeSystemShadowsUser(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer logging.Replace(zap.New(core))()

	user, err := NewUser([]directives.UserDefinition{
		{Name: "uppercase", Expression: "value"},
		{Name: "redact", Expression: `"x"`},
	})
	require.NoError(t, err)

	reg := NewComposite(NewSystem(), user)

	info, ok := reg.Get("uppercase")
	require.True(t, ok)
	assert.Equal(t, directive.ScopeSystem, info.Scope)

	info, ok = reg.Get("redact")
	require.True(t, ok)
	assert.Equal(t, directive.ScopeUser, info.Scope)

	assert.Len(t, reg.List(), len(directives.Builtins())+1)
	assert.Equal(t, 1, logs.FilterMessage("directive shadowed").Len())
}

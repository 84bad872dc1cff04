package registry

import (
	"sort"

	"go.uber.org/zap"

	"txservice/internal/directive"
	"txservice/internal/logging"
)

type composite struct {
	members []Registry
}

// NewComposite layers registries. Lookups go through the members in the
// given order and the first hit wins; later entries with the same name are
// shadowed and logged once here.
func NewComposite(members ...Registry) Registry {
	c := &composite{members: append([]Registry(nil), members...)}
	seen := map[string]directive.Scope{}
	for _, m := range c.members {
		for _, info := range m.List() {
			if scope, ok := seen[info.Name]; ok {
				logging.L().Warn("directive shadowed",
					zap.String("directive", info.Name),
					zap.String("kept", string(scope)),
					zap.String("ignored", string(info.Scope)))
				continue
			}
			seen[info.Name] = info.Scope
		}
	}
	return c
}

func (c *composite) Get(name string) (*directive.Info, bool) {
	for _, m := range c.members {
		if info, ok := m.Get(name); ok {
			return info, true
		}
	}
	return nil, false
}

func (c *composite) List() []*directive.Info {
	seen := map[string]struct{}{}
	var out []*directive.Info
	for _, m := range c.members {
		for _, info := range m.List() {
			if _, ok := seen[info.Name]; ok {
				continue
			}
			seen[info.Name] = struct{}{}
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

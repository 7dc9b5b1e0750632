// Package profiles holds the MCU profiles compiled into the binary and
// resolves a configuration's mcu_model to one of them.
package profiles

import (
	"context"
	_ "embed"
	"slices"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/ctxlog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/hcl_adapter"
)

//go:embed stm32f103.hcl
var stm32f103 []byte

// Set is a collection of profiles keyed by MCU model.
type Set struct {
	profiles map[string]*catalog.Profile
}

// Load decodes the embedded profiles and then every profile found under
// extraPaths. A profile from extraPaths replaces an embedded profile of the
// same MCU model.
func Load(ctx context.Context, extraPaths ...string) (*Set, error) {
	logger := ctxlog.FromContext(ctx)
	loader := hcl_adapter.NewProfileLoader()

	builtin, err := loader.Parse(ctx, stm32f103, "stm32f103.hcl")
	if err != nil {
		return nil, err
	}
	s := &Set{profiles: make(map[string]*catalog.Profile)}
	for _, p := range builtin {
		s.profiles[p.MCU] = p
	}

	if len(extraPaths) > 0 {
		extra, err := loader.LoadFiles(ctx, extraPaths...)
		if err != nil {
			return nil, err
		}
		for _, p := range extra {
			if _, ok := s.profiles[p.MCU]; ok {
				logger.Info("Profile overridden.", "mcu", p.MCU)
			}
			s.profiles[p.MCU] = p
		}
	}

	logger.Debug("Profiles loaded.", "models", s.Models())
	return s, nil
}

// Get returns the profile of an MCU model.
func (s *Set) Get(mcu string) (*catalog.Profile, error) {
	p, ok := s.profiles[mcu]
	if !ok {
		return nil, errcode.New(errcode.UnknownMCU, "", "mcu model %q is not supported, known models: %v", mcu, s.Models())
	}
	return p, nil
}

// Models returns the known MCU models, sorted.
func (s *Set) Models() []string {
	out := make([]string, 0, len(s.profiles))
	for m := range s.profiles {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

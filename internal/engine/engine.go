package engine

import (
	"context"
	"fmt"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/conflict"
	"github.com/specialistvlad/mcugraph/internal/ctxlog"
	"github.com/specialistvlad/mcugraph/internal/extihub"
	"github.com/specialistvlad/mcugraph/internal/firmware"
	"github.com/specialistvlad/mcugraph/internal/profiles"
	"github.com/specialistvlad/mcugraph/internal/registry"
)

// Engine holds what stays fixed between runs: the device handlers and the
// known MCU profiles.
type Engine struct {
	registry *registry.Registry
	profiles *profiles.Set
}

// New creates an engine.
func New(reg *registry.Registry, set *profiles.Set) *Engine {
	return &Engine{registry: reg, profiles: set}
}

// run is the mutable state of one generation.
type run struct {
	profile  *catalog.Profile
	claims   []conflict.Claim
	ids      []conflict.DevID
	features []firmware.FeatureRequest
	keys     []conflict.Claim
	report   *Report
}

// Run allocates every device of the document and returns the report.
func (e *Engine) Run(ctx context.Context, doc *config.Document) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Generation run started.", "device_name", doc.Firmware.DeviceName, "mcu", doc.Firmware.MCUModel)

	p, err := e.profiles.Get(doc.Firmware.MCUModel)
	if err != nil {
		return nil, err
	}
	bindings, err := e.registry.Bind(ctx, doc)
	if err != nil {
		return nil, err
	}

	r := &run{
		profile: p,
		report:  &Report{DeviceName: doc.Firmware.DeviceName, MCU: p.MCU, Vocabulary: config.NewObject()},
	}

	fw, err := firmware.Allocate(ctx, p, &doc.Firmware)
	if err != nil {
		return nil, err
	}
	r.claims = append(r.claims, fw.Claims()...)
	r.report.Firmware = fw

	info := firmware.NewInfo(p)
	r.ids = append(r.ids, info.DevID())

	hub := extihub.New(p)
	for _, b := range bindings {
		gr, err := allocator.AllocateGroup(ctx, p, b.Handler, b.Group)
		if err != nil {
			return nil, err
		}
		if err := r.addGroup(gr, b.Group, info, hub); err != nil {
			return nil, err
		}
	}

	hubRes, err := hub.Allocate(ctx)
	if err != nil {
		return nil, err
	}
	r.report.Hub = hubRes
	if hubRes.Enabled {
		r.claims = append(r.claims, conflict.Claim{Owner: extihub.Name, Values: hubRes.Requires.Leaves()})
		for _, f := range hubRes.Features {
			r.features = append(r.features, firmware.FeatureRequest{Feature: f, Device: extihub.Name})
		}
		r.keys = append(r.keys, conflict.Claim{Owner: extihub.Name, Values: hubRes.Vocabulary.Keys()})
	}

	identity, err := info.Finalize(doc)
	if err != nil {
		return nil, err
	}
	r.report.Info = identity
	r.keys = append(r.keys, conflict.Claim{Owner: firmware.InfoName, Values: identity.Vocabulary.Keys()})

	if err := fw.Finalize(ctx, r.resources(), r.features); err != nil {
		return nil, err
	}
	r.keys = append(r.keys, conflict.Claim{Owner: "firmware", Values: fw.Vocabulary.Keys()})

	if err := r.check(); err != nil {
		return nil, err
	}

	r.report.Resources = r.resources()
	for _, id := range r.ids {
		r.report.DevIDs = append(r.report.DevIDs, DevID{Device: id.Owner, DevID: id.Value})
	}
	for _, g := range r.report.Groups {
		mergeVocabulary(r.report.Vocabulary, g.Vocabulary)
	}
	mergeVocabulary(r.report.Vocabulary, hubRes.Vocabulary)
	mergeVocabulary(r.report.Vocabulary, identity.Vocabulary)
	mergeVocabulary(r.report.Vocabulary, fw.Vocabulary)

	logger.Info("Generation run finished.",
		"groups", len(r.report.Groups),
		"resources", len(r.report.Resources),
		"exti_hub", hubRes.Enabled,
		"warnings", len(r.report.Warnings))
	return r.report, nil
}

func (r *run) addGroup(gr *allocator.GroupResult, g *config.Group, info *firmware.Info, hub *extihub.Hub) error {
	for i, d := range gr.Devices {
		if err := info.Add(g.Devices[i], gr.Info.Tag); err != nil {
			return err
		}
		r.ids = append(r.ids, conflict.DevID{Owner: d.Name, Value: d.DevID})
		r.claims = append(r.claims, conflict.Claim{Owner: d.Name, Values: d.Resources})
		if err := hub.Register(d.Name, d.Requires); err != nil {
			return err
		}
		for _, f := range d.Features {
			r.features = append(r.features, firmware.FeatureRequest{Feature: f, Device: d.Name})
		}
	}
	r.keys = append(r.keys, conflict.Claim{Owner: gr.Name, Values: gr.Vocabulary.Keys()})
	r.report.Groups = append(r.report.Groups, gr)
	r.report.Warnings = append(r.report.Warnings, gr.Warnings...)
	return nil
}

// check runs the cross-device checks over the complete claim set.
func (r *run) check() error {
	if err := conflict.CheckNoResourceConflicts(r.claims); err != nil {
		return err
	}
	if err := conflict.CheckDevIDDomain(r.ids, r.profile.MaxAddress); err != nil {
		return err
	}
	if err := conflict.CheckDevIDUniqueness(r.ids); err != nil {
		return err
	}
	if err := conflict.CheckContributionKeys(r.keys); err != nil {
		return fmt.Errorf("merging vocabulary: %w", err)
	}
	return nil
}

func (r *run) resources() []string {
	var out []string
	for _, c := range r.claims {
		out = append(out, c.Values...)
	}
	return out
}

func mergeVocabulary(dst, src *config.Object) {
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		dst.Set(k, v)
	}
}

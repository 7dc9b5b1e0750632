package allocator

import (
	"context"
	"fmt"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/conflict"
	"github.com/specialistvlad/mcugraph/internal/ctxlog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// DeviceResult is the outcome of allocating one device.
type DeviceResult struct {
	Name       string      `json:"name"`
	DevID      any         `json:"dev_id"`
	Index      int         `json:"index"`
	Descriptor *Descriptor `json:"descriptor"`
	// Requires is the closed-over requirement map: the configured requires
	// with every claim of the allocation merged in.
	Requires catalog.Requires `json:"requires"`
	// Resources are the physical resources the device holds.
	Resources  []string       `json:"resources"`
	ISRs       []ISR          `json:"isrs,omitempty"`
	Features   []string       `json:"features,omitempty"`
	Vocabulary *config.Object `json:"vocabulary"`
	Warnings   []string       `json:"warnings,omitempty"`
	hasDevID   bool
}

// HasDevID reports whether the configuration declared a dev_id.
func (d *DeviceResult) HasDevID() bool { return d.hasDevID }

// GroupResult is the outcome of allocating one device group.
type GroupResult struct {
	Name    string          `json:"name"`
	Info    Info            `json:"info"`
	Devices []*DeviceResult `json:"devices"`
	// Vocabulary merges the group-level symbols with every device's.
	Vocabulary *config.Object `json:"vocabulary"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// Features returns the distinct firmware features required by the group.
func (g *GroupResult) Features() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, d := range g.Devices {
		for _, f := range d.Features {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// AllocateGroup runs the handler over every device of the group in
// declaration order.
func AllocateGroup(ctx context.Context, p *catalog.Profile, h Handler, g *config.Group) (*GroupResult, error) {
	logger := ctxlog.FromContext(ctx).With("group", g.Name)
	info := h.Info()
	logger.Debug("Allocating device group.", "devices", len(g.Devices))

	if err := CheckInstanceCount(info, g); err != nil {
		return nil, err
	}

	res := &GroupResult{Name: g.Name, Info: info, Vocabulary: config.NewObject()}
	var keys []conflict.Claim
	for i, dev := range g.Devices {
		r := resolver.New(p).ForDevice(dev.Name)

		if err := h.SanityChecks(ctx, r, dev); err != nil {
			return nil, r.Attribute(err)
		}
		a, err := h.Allocate(ctx, r, dev, i)
		if err != nil {
			return nil, r.Attribute(err)
		}

		merged := dev.Requires.Merge(a.Claims)
		d := &DeviceResult{
			Name:       dev.Name,
			DevID:      dev.DevID,
			Index:      i,
			Descriptor: a.Descriptor,
			Requires:   merged,
			Resources:  h.RequiredResources(merged),
			ISRs:       a.ISRs,
			Features:   a.Features,
			Vocabulary: a.Vocabulary,
			Warnings:   a.Warnings,
			hasDevID:   dev.HasDevID,
		}
		if d.Vocabulary == nil {
			d.Vocabulary = config.NewObject()
		}
		for _, w := range a.Warnings {
			logger.Warn(w, "device", dev.Name)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", dev.Name, w))
		}
		keys = append(keys, conflict.Claim{Owner: dev.Name, Values: d.Vocabulary.Keys()})
		res.Devices = append(res.Devices, d)
		logger.Debug("Device allocated.", "device", dev.Name, "index", i, "resources", len(d.Resources))
	}

	if info.Prefix != "" {
		groupKeys := config.NewObject()
		groupKeys.Set(fmt.Sprintf("__%s_DEVICE_COUNT__", info.Prefix), int64(len(g.Devices)))
		keys = append(keys, conflict.Claim{Owner: g.Name, Values: groupKeys.Keys()})
		mergeInto(res.Vocabulary, groupKeys)
	}
	if err := conflict.CheckContributionKeys(keys); err != nil {
		return nil, err
	}
	for _, d := range res.Devices {
		mergeInto(res.Vocabulary, d.Vocabulary)
	}

	logger.Info("Device group allocated.", "devices", len(res.Devices), "warnings", len(res.Warnings))
	return res, nil
}

// CheckInstanceCount enforces the per-MCU device limit of a handler.
func CheckInstanceCount(info Info, g *config.Group) error {
	if info.MaxInstances <= 0 || len(g.Devices) <= info.MaxInstances {
		return nil
	}
	return errcode.New(errcode.StructuralValidation, g.Name,
		"%s doesn't support %d devices per mcu. %d devices are supported",
		info.Group, len(g.Devices), info.MaxInstances)
}

func mergeInto(dst, src *config.Object) {
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		dst.Set(k, v)
	}
}

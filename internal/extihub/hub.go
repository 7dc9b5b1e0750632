// Package extihub implements the shared external-interrupt hub: a virtual
// device that collects every EXTI line claimed by the allocated devices and
// claims the few hardware vectors those lines are multiplexed onto.
package extihub

import (
	"context"
	"fmt"
	"slices"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/ctxlog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
)

// Name is the device name the hub uses in claims and error messages.
const Name = "EXTIHUB"

// Hub tracks which device owns each EXTI line.
type Hub struct {
	profile *catalog.Profile
	owners  map[string]string
	lines   []string
}

// New creates an empty hub for the profile.
func New(p *catalog.Profile) *Hub {
	return &Hub{profile: p, owners: make(map[string]string)}
}

// Register scans the closed-over requires of a device and records every
// exti_line leaf it holds. A line already owned is a hard conflict.
func (h *Hub) Register(device string, req catalog.Requires) error {
	for _, name := range req.Leaves() {
		res, ok := h.profile.Lookup(name)
		if !ok {
			return errcode.New(errcode.UnknownResource, device, "unknown resource %s", name)
		}
		if res.Type != catalog.TypeEXTILine {
			continue
		}
		if owner, taken := h.owners[name]; taken {
			return errcode.New(errcode.ConflictingExtiLine, device,
				"Conflicting exti_line (%s) detected in devices %s and %s", name, owner, device)
		}
		h.owners[name] = device
		h.lines = append(h.lines, name)
	}
	return nil
}

// Enabled reports whether any device registered an EXTI line.
func (h *Hub) Enabled() bool {
	return len(h.lines) > 0
}

// Lines returns the registered lines in registration order.
func (h *Hub) Lines() []string {
	return slices.Clone(h.lines)
}

// Owner returns the device owning a line.
func (h *Hub) Owner(line string) (string, bool) {
	d, ok := h.owners[line]
	return d, ok
}

// Result is the hub's allocation.
type Result struct {
	Enabled bool `json:"enabled"`
	// Requires holds one exti_irq_<i> → {irq_handler: vector} claim per
	// distinct vector, in sorted vector order.
	Requires catalog.Requires `json:"requires"`
	Handlers []string         `json:"handlers"`
	// LineToIRQn maps every EXTI line of the MCU, by number, to its IRQn.
	LineToIRQn []string          `json:"line_to_irqn"`
	Owners     map[string]string `json:"owners"`
	Features   []string          `json:"features,omitempty"`
	Vocabulary *config.Object    `json:"vocabulary"`
}

// Allocate computes the vectors serving the registered lines. A hub without
// lines has no footprint at all.
func (h *Hub) Allocate(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	if !h.Enabled() {
		logger.Debug("EXTI hub disabled, no lines registered.")
		return &Result{Vocabulary: config.NewObject()}, nil
	}

	var handlers []string
	for _, line := range h.lines {
		v, err := h.profile.EXTILineToHandler(line)
		if err != nil {
			return nil, attribute(err)
		}
		if !slices.Contains(handlers, v) {
			handlers = append(handlers, v)
		}
	}
	slices.Sort(handlers)

	var req catalog.Requires
	for i, v := range handlers {
		req.Set(fmt.Sprintf("exti_irq_%d", i), catalog.Singleton(catalog.TypeIRQHandler, v))
	}

	lines := h.profile.ByType(catalog.TypeEXTILine)
	byNumber := make([]string, len(lines))
	for _, l := range lines {
		n, err := h.profile.EXTILineNumber(l.Name)
		if err != nil {
			return nil, attribute(err)
		}
		if n < 0 || n >= len(lines) {
			return nil, errcode.New(errcode.StructuralValidation, Name, "exti lines of %s are not numbered 0..%d", h.profile.MCU, len(lines)-1)
		}
		v, err := h.profile.EXTILineToHandler(l.Name)
		if err != nil {
			return nil, attribute(err)
		}
		byNumber[n] = h.profile.IRQn(v)
	}

	owners := make(map[string]string, len(h.owners))
	for k, v := range h.owners {
		owners[k] = v
	}

	vocab := config.NewObject()
	vocab.Set("__EXTIHUB_ENABLED__", int64(1))
	vocab.Set("__EXTIHUB_IRQ_HANDLERS__", toAny(handlers))
	vocab.Set("__EXTIHUB_LINE_TO_IRQN__", toAny(byNumber))
	vocab.Set("__EXTIHUB_LINE_COUNT__", int64(len(byNumber)))

	logger.Info("EXTI hub allocated.", "lines", len(h.lines), "vectors", handlers)
	return &Result{
		Enabled:    true,
		Requires:   req,
		Handlers:   handlers,
		LineToIRQn: byNumber,
		Owners:     owners,
		Features:   []string{catalog.FeatureSysTick},
		Vocabulary: vocab,
	}, nil
}

func attribute(err error) error {
	if e, ok := err.(*errcode.E); ok && e.Device == "" {
		cp := *e
		cp.Device = Name
		return &cp
	}
	return err
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// Package allocator defines the contract every device type implements and
// runs it over one device group.
//
// Allocation is two-phase: a Handler never mutates the configuration it is
// given. It returns the resources it derived as Claims, and the group runner
// merges them into a copy of the device's requires so the closed-over map is
// what the conflict checks and the interrupt hub see.
package allocator

import (
	"context"
	"fmt"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/resolver"
)

// Info describes a device type.
type Info struct {
	// Group is the configuration key selecting this handler, for example
	// ADCDevCustomizer.
	Group string `json:"group"`
	// Tag is the device type reported by the info device.
	Tag string `json:"tag"`
	// Prefix namespaces the group-level vocabulary keys: ADCDEV gives
	// __ADCDEV_DEVICE_COUNT__.
	Prefix string `json:"prefix"`
	// MaxInstances limits the group size; zero means unlimited.
	MaxInstances int `json:"max_instances,omitempty"`
}

// Handler allocates devices of one type.
type Handler interface {
	Info() Info
	// SanityChecks validates the configuration before any resource is resolved.
	SanityChecks(ctx context.Context, r *resolver.Resolver, dev *config.Device) error
	// Allocate resolves the device. index is the 0-based position of the
	// device inside its group.
	Allocate(ctx context.Context, r *resolver.Resolver, dev *config.Device, index int) (*Allocation, error)
	// RequiredResources lists the physical resources held by a device given
	// its closed-over requires.
	RequiredResources(merged catalog.Requires) []string
}

// Base provides the default RequiredResources: every leaf is held.
type Base struct{}

// RequiredResources returns every leaf resource name of merged.
func (Base) RequiredResources(merged catalog.Requires) []string {
	return merged.Leaves()
}

// Allocation is what a handler derives for one device.
type Allocation struct {
	Descriptor *Descriptor
	// Claims are requirements synthesized during allocation. Roles present
	// in the device requires are replaced; new roles are appended.
	Claims catalog.Requires
	ISRs   []ISR
	// Vocabulary holds the symbols this device defines.
	Vocabulary *config.Object
	// Features lists the firmware features the device depends on.
	Features []string
	Warnings []string
}

// NewAllocation returns an empty allocation ready to be filled.
func NewAllocation() *Allocation {
	return &Allocation{Descriptor: NewDescriptor(), Vocabulary: config.NewObject()}
}

// Claim adds a synthesized {type: name} requirement under role.
func (a *Allocation) Claim(role, resourceType, name string) {
	a.Claims.Set(role, catalog.Singleton(resourceType, name))
}

// AddISR appends a dispatch-table entry.
func (a *Allocation) AddISR(handler, common string, index int) {
	a.ISRs = append(a.ISRs, ISR{Handler: handler, Common: common, Index: index})
}

// Warn records a non-fatal accommodation.
func (a *Allocation) Warn(format string, args ...any) {
	a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
}

// ISR is one slot of an interrupt dispatch table: the vector handler calls
// the device type's common handler with the device index.
type ISR struct {
	Handler string `json:"handler"`
	Common  string `json:"common"`
	Index   int    `json:"index"`
}

// String renders the slot as the firmware macro invocation.
func (i ISR) String() string {
	return fmt.Sprintf("MAKE_ISR_WITH_INDEX(%s, %s, %d)", i.Handler, i.Common, i.Index)
}

// Descriptor is the ordered, resolved representation of one device.
type Descriptor struct {
	fields *config.Object
}

// NewDescriptor returns an empty descriptor.
func NewDescriptor() *Descriptor {
	return &Descriptor{fields: config.NewObject()}
}

// Add appends a field and returns the descriptor for chaining.
func (d *Descriptor) Add(key string, v any) *Descriptor {
	d.fields.Set(key, v)
	return d
}

// Get returns the value of a field.
func (d *Descriptor) Get(key string) (any, bool) {
	return d.fields.Get(key)
}

// Keys returns the field names in order.
func (d *Descriptor) Keys() []string {
	return d.fields.Keys()
}

// MarshalJSON encodes the fields as an ordered object.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return d.fields.MarshalJSON()
}

package engine

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/extihub"
	"github.com/specialistvlad/mcugraph/internal/firmware"
)

// Report is the machine-readable result of a run, consumed by the code
// emitter.
type Report struct {
	DeviceName string                   `json:"device_name"`
	MCU        string                   `json:"mcu"`
	Firmware   *firmware.Firmware       `json:"firmware"`
	Info       *firmware.Identity       `json:"info"`
	Groups     []*allocator.GroupResult `json:"groups"`
	Hub        *extihub.Result          `json:"exti_hub"`
	// Resources lists every claimed resource: firmware first, then devices
	// in declaration order, then the hub.
	Resources  []string       `json:"resources"`
	DevIDs     []DevID        `json:"dev_ids"`
	Vocabulary *config.Object `json:"vocabulary"`
	Warnings   []string       `json:"warnings"`
}

// DevID is one allocated device id.
type DevID struct {
	Device string `json:"device"`
	DevID  any    `json:"dev_id"`
}

// Group returns the result of the named device group.
func (r *Report) Group(name string) (*allocator.GroupResult, bool) {
	for _, g := range r.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Write encodes the report as indented JSON.
func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

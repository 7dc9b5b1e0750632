// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Document structure, which is the root container for a
// device configuration, and the types it aggregates.
package config

import (
	"context"

	"github.com/specialistvlad/mcugraph/internal/catalog"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads one configuration document from path.
	Load(ctx context.Context, path string) (*Document, error)
}

// Document is one parsed configuration file.
type Document struct {
	Firmware Firmware
	Groups   []*Group
	// Raw is the whole source tree, used to fingerprint the configuration.
	Raw *Object
}

// Firmware holds the firmware-wide settings.
type Firmware struct {
	DeviceName string
	MCUModel   string
	// I2CBus and SysTick are nil when the document omits them.
	I2CBus  *Section
	SysTick *Section
	Fields  *Object
}

// Section is a firmware subsystem block: a requires mapping plus settings.
type Section struct {
	Requires catalog.Requires
	Fields   *Object
}

// Group is every device of one device type, in declaration order.
type Group struct {
	Name    string
	Devices []*Device
}

// Device is one configured logical device.
type Device struct {
	Name string
	// DevID is the raw dev_id value; it is validated after allocation so a
	// non-integer id surfaces as an invalid id rather than a decode error.
	DevID    any
	HasDevID bool
	Requires catalog.Requires
	Fields   *Object
}

// Group returns the named group.
func (d *Document) Group(name string) (*Group, bool) {
	for _, g := range d.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Field returns a type-specific device setting.
func (d *Device) Field(key string) (any, bool) {
	return d.Fields.Get(key)
}

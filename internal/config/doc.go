// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package config defines the format-agnostic model of a device configuration
// document, along with the Loader interface implemented by the JSON, YAML and
// HCL adapters.
//
// # Core Concepts
//
//   - Document: the root of one configuration file. It holds the firmware
//     section and the device groups in declaration order.
//
//   - Group: all devices of one device type, keyed by the handler name that
//     allocates them (for example ADCDevCustomizer).
//
//   - Device: one configured instance. Its `requires` section is decoded into
//     a catalog.Requires; every other key stays in an ordered Object so that
//     device handlers can read their own fields.
//
// Why keep declaration order?
//
// Allocation assigns per-group indexes and synthesized ISR slots in the order
// devices are declared, so every adapter must preserve it. Plain Go maps do
// not, which is why Object is an ordered key/value list rather than a map.
package config

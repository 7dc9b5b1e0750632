// Package registry provides the central "glue" for the device type system.
//
// The Registry maps the group names used in configuration documents (e.g.,
// "ADCDevCustomizer") to the compiled allocator.Handler implementing that
// device type. Modules register their handlers at startup, and the registry
// is validated before any document is allocated so a misconfigured build
// fails before it reads user input.
package registry

// Package engine runs one generation. It binds the configured device groups to
// their handlers, allocates the firmware subsystems, every device and the EXTI
// hub, and checks the union of all claims once everything is allocated.
//
// A run either produces a complete Report or fails with the first violated
// rule; there is no partial output.
package engine

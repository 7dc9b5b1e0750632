// Package app contains the application shell of the generator. It wires the
// logger, the device handler registry and the MCU profiles together and runs
// one generation for a configuration file, decoupled from any specific
// entrypoint like a CLI.
package app

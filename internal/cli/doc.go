// Package cli turns command-line arguments into an app.Config. It knows
// nothing about allocation; usage problems surface as *ExitError with exit
// code 2.
package cli

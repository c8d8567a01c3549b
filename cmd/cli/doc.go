// Package cli constructs the gitfleet command-line interface: the Cobra
// command hierarchy, the Viper backed configuration loader, structured zap
// logging, and the fleet session shared by every repository command.
package cli

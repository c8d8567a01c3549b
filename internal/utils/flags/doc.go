// Package flags provides Cobra flag helpers shared by gitfleet commands.
package flags

// Package labels keeps issue labels consistent across a repository fleet.
package labels

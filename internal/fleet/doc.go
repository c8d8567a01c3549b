// Package fleet selects repositories owned by a GitHub user or organization and
// runs per-repository tasks across them with bounded concurrency and pacing.
package fleet

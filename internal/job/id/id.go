// Package id provides unique identifier generation for jobs.
package id

import "github.com/lithammer/shortuuid/v4"

// Prefix starts every generated job ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<shortuuid>
// Example: job-KwSysDpxcBU9FNhGkn2dCf
func Generate() string {
	return Prefix + shortuuid.New()
}

// Package jobs holds the background tasks canopy registers with the job
// manager: the password reminder and the nightly tree check.
package jobs

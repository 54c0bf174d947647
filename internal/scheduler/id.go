package scheduler

import "github.com/google/uuid"

// newRunVersionID mints a run_version_id for a manually triggered run that
// has no payload-supplied one (spec.md §3: every trend_version row stamps
// the run_version_id it was produced in).
func newRunVersionID() string {
	return uuid.New().String()
}

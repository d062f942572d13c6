package report

import (
	"github.com/offsync/cache-common/store"
)

// Reporter is a sink for engine telemetry. Reporting is visibility only,
// the engine stays correct if every call is a no-op.
type Reporter interface {
	Release()

	// ReportStatistics reports a statistics snapshot for a domain
	ReportStatistics(domain string, statistics store.Statistics)
	// ReportSweep reports the outcome of one maintenance sweep over a domain
	ReportSweep(sweepID string, domain string, expired int)
}

package report

import (
	log "github.com/sirupsen/logrus"

	"github.com/offsync/cache-common/store"
)

// LogReporter reports engine telemetry to the process log
type LogReporter struct {
}

// NewLogReporter creates a new LogReporter
func NewLogReporter() Reporter {
	return &LogReporter{}
}

// Release releases resources used
func (reporter *LogReporter) Release() {
}

// ReportStatistics reports a statistics snapshot for a domain
func (reporter *LogReporter) ReportStatistics(domain string, statistics store.Statistics) {
	logger := log.WithFields(log.Fields{
		"package":  "report",
		"struct":   "LogReporter",
		"function": "ReportStatistics",
	})

	logger.Infof("cache statistics for domain %s - entries %d, size %d, hits %d, misses %d, evictions %d, hit rate %.2f",
		domain, statistics.EntryCount, statistics.TotalSize, statistics.Hits, statistics.Misses, statistics.Evictions, statistics.HitRate)
}

// ReportSweep reports the outcome of one maintenance sweep over a domain
func (reporter *LogReporter) ReportSweep(sweepID string, domain string, expired int) {
	logger := log.WithFields(log.Fields{
		"package":  "report",
		"struct":   "LogReporter",
		"function": "ReportSweep",
	})

	logger.Infof("maintenance sweep %s for domain %s - purged %d expired entries", sweepID, domain, expired)
}

// NilReporter discards all telemetry
type NilReporter struct {
}

// NewNilReporter creates a new NilReporter
func NewNilReporter() Reporter {
	return &NilReporter{}
}

// Release releases resources used
func (reporter *NilReporter) Release() {
}

// ReportStatistics does nothing
func (reporter *NilReporter) ReportStatistics(domain string, statistics store.Statistics) {
}

// ReportSweep does nothing
func (reporter *NilReporter) ReportSweep(sweepID string, domain string, expired int) {
}

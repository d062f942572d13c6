package store

// Statistics is a snapshot of store performance counters
type Statistics struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	TotalSize  int64   `json:"total_size"`
	EntryCount int     `json:"entry_count"`
	HitRate    float64 `json:"hit_rate"`
}

// Add accumulates another snapshot into this one. The combined hit rate is
// recomputed from the combined counters.
func (statistics *Statistics) Add(other Statistics) {
	statistics.Hits += other.Hits
	statistics.Misses += other.Misses
	statistics.Evictions += other.Evictions
	statistics.TotalSize += other.TotalSize
	statistics.EntryCount += other.EntryCount

	statistics.HitRate = 0
	if statistics.Hits+statistics.Misses > 0 {
		statistics.HitRate = float64(statistics.Hits) / float64(statistics.Hits+statistics.Misses)
	}
}

package offline

import "time"

// transferStats tracks throughput for one download with a smoothed rate,
// so the reported speed does not jump around on bursty reads.
type transferStats struct {
	startedAt  time.Time
	lastSample time.Time
	lastBytes  int64
	rate       float64 // bytes per second, smoothed
}

func newTransferStats(initialBytes int64) *transferStats {
	now := time.Now()
	return &transferStats{
		startedAt:  now,
		lastSample: now,
		lastBytes:  initialBytes,
	}
}

// sample updates the smoothed rate from the current byte count
func (t *transferStats) sample(bytes int64) {
	now := time.Now()
	elapsed := now.Sub(t.lastSample).Seconds()
	if elapsed < 0.2 {
		return
	}
	instant := float64(bytes-t.lastBytes) / elapsed
	if t.rate == 0 {
		t.rate = instant
	} else {
		t.rate = t.rate*0.7 + instant*0.3
	}
	t.lastSample = now
	t.lastBytes = bytes
}

// speed returns the smoothed transfer rate in bytes per second
func (t *transferStats) speed() float64 {
	return t.rate
}

// eta estimates seconds remaining, -1 when unknowable
func (t *transferStats) eta(bytes, total int64) int {
	if total <= 0 || t.rate <= 0 {
		return -1
	}
	remaining := total - bytes
	if remaining <= 0 {
		return 0
	}
	return int(float64(remaining) / t.rate)
}

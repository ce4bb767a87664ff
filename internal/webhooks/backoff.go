package webhooks

import "time"

var backoffSchedule = []time.Duration{
	time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	12 * time.Hour,
}

// NextAttempt returns when a delivery that has failed `attempts` times should
// be retried. The last step of the schedule repeats.
func NextAttempt(attempts int, now time.Time) time.Time {
	if attempts < 1 {
		attempts = 1
	}
	idx := attempts - 1
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return now.Add(backoffSchedule[idx])
}

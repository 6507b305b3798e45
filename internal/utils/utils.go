package utils

import "time"

// ElapsedFunc returns a closure measuring the time since its creation.
func ElapsedFunc() func() time.Duration {
	startTime := time.Now()
	return func() time.Duration {
		return time.Since(startTime)
	}
}

// return humanized time delta rounded to seconds (not to have like 1h12m1.112521806s)
func HumanDeltaSec(delta time.Duration) string {
	return delta.Round(time.Second).String()
}

func HumanDeltaMilisec(delta time.Duration) string {
	return delta.Round(10 * time.Millisecond).String()
}

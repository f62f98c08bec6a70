package config

import "time"

func timeoutCh() <-chan time.Time {
	return time.After(3 * time.Second)
}

package inviteflow

import "time"

const (
	testWaitTimeout  = 2 * time.Second
	testPollInterval = 5 * time.Millisecond
)

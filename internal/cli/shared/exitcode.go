package shared

const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	NormLoadError   = 4
	IngestError     = 5
	PartialSuccess  = 6
	Forbidden       = 7
)

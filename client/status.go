package client

// Status is the lifecycle stage of a request.
type Status int

const (
	Pending Status = iota
	Done
	Failed
	Timeout
	Cancelled
	// Empty follows Done once the response has been taken.
	Empty
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is any non-pending status.
func (s Status) Terminal() bool {
	return s != Pending
}

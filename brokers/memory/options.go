package memory

// Options for memory broker
type Options struct {
	// QueueSize bounds how many jobs one queue may hold. Zero means unbounded.
	QueueSize int
}

// DefaultOptions returns default memory broker options
func DefaultOptions() Options {
	return Options{
		QueueSize: 100000,
	}
}

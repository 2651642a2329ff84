package stream

// Store is the random-access byte sink a Stream buffers over. Offsets are
// absolute. WriteAt past the current length extends the store; the gap reads
// back as zeros.
type Store interface {
	ReadAt(p []byte, off uint64) error
	WriteAt(p []byte, off uint64) error
	Length() (uint64, error)
	SetLength(n uint64) error
	// Flush makes previously written bytes durable.
	Flush() error
}

// Sniffer is polled between units of work to check whether the caller asked
// for the current operation to stop. It must never block.
type Sniffer interface {
	ShouldAbort() bool
}

// ProgressSniffer is a Sniffer that also wants to hear about progress.
type ProgressSniffer interface {
	Sniffer
	Progress(done, total uint64)
}

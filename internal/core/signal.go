package core

// Frame is a marshaled outbound signaling message.
type Frame []byte

// SignalConnection abstracts the member's messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

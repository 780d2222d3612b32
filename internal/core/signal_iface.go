package core

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// Notify queues a server push event. It never blocks; a full queue
	// returns an error and the event is dropped.
	Notify(event string, payload any) error
	Close()
}

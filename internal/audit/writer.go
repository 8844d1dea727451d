package audit

// Writer persists audit events. Write validates the event, links it to
// the previous one by setting HashPrev and Hash, and returns only once the
// event is durable.
type Writer interface {
	Write(event *Event) error
	Close() error

	// LastHash returns the hash of the last event written, or GenesisHash.
	LastHash() string
}

// NopWriter discards events. It is installed while auditing is disabled.
type NopWriter struct{}

var _ Writer = NopWriter{}

func (NopWriter) Write(*Event) error { return nil }
func (NopWriter) Close() error       { return nil }
func (NopWriter) LastHash() string   { return GenesisHash }

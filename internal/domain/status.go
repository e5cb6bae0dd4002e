package domain

// Status is the connection state of a feed subscription. It is the sole
// error channel consumers observe; individual bad frames or transport
// hiccups never surface as errors from the update path.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	// StatusError is terminal: the retry budget is exhausted and the
	// subscription will not self-heal without an explicit reconnect.
	StatusError Status = "error"
)

package server

const (
	// HeaderXResponseTime reports request processing duration. Set by Timing.
	HeaderXResponseTime = "X-Response-Time"

	// HeaderXRealIP carries the client address when behind a proxy.
	HeaderXRealIP = "X-Real-IP"

	// HeaderXTxCount reports how many transactions a request started.
	HeaderXTxCount = "X-Tx-Count"
)

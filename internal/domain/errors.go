package domain

import "errors"

// ErrTransientNetwork marks stream disconnects, HTTP timeouts and other
// transport failures. Always retried with backoff.
var ErrTransientNetwork = errors.New("transient network error")

// ErrBatchFetch marks a non-success status or malformed body from the
// snapshot endpoint. Fails the whole resolve call.
var ErrBatchFetch = errors.New("batch fetch failed")

// ErrDataUnavailable: the symbol exists on no quote pairing.
var ErrDataUnavailable = errors.New("price data unavailable")

// ErrSessionLoop is reported once when a session loop gives up.
var ErrSessionLoop = errors.New("session loop failed")

// Package timeouts defines shared timeout constants used across the
// process. Centralizing these values prevents drift between component
// boundaries and makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StoreCall caps a single persistence call made on the hot message
// path. Persistence that exceeds the budget is logged and dropped
// rather than blocking delivery.
const StoreCall = 3 * time.Second

// TokenVerify caps credential verification during CONNECT.
const TokenVerify = 3 * time.Second

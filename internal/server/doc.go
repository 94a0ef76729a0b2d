// Package server exposes the client-facing WebSocket endpoint.
//
// Each connected client gets its own upstream node session, its own job
// supervisor, and a read loop that turns incoming resource requests
// into supervised jobs. Replies are {"resource": ..., "payload": ...}
// envelopes so the frontend can route them without ordering guarantees.
package server

// Package node maintains connectivity to a rotating pool of untrusted
// upstream blockchain nodes and correlates concurrent RPC calls over a
// single session.
//
// The Connection Manager:
//   - Picks an upstream address uniformly at random per connect attempt
//   - Retries failed handshakes indefinitely (eventual connectivity is
//     preferred over fast-fail)
//   - Probes session health on a fixed interval and replaces dead
//     sessions for all subsequent callers
//
// The Request Correlator tags every call with a process-wide strictly
// increasing nonce and demultiplexes responses by nonce, so many
// logical calls share one physical connection with no FIFO assumption.
// Failed calls back off quadratically, force a reconnect on every 3rd
// consecutive failure, and abandon with an empty result after 15.
package node

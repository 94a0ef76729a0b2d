// Package supervisor manages the async jobs of one connected client.
//
// Every request a client sends becomes a job under a resource name.
// When a newer request for the same resource carries different
// parameters, the older jobs are superseded and cancelled so the client
// never receives replies for a selection it has navigated away from.
// Disconnecting cancels everything.
package supervisor

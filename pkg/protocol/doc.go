// Package protocol implements the Verve wire protocol.
//
// The protocol favors a compact, pipe-delimited text encoding to keep
// per-message bytes low on high-frequency interactions, with a JSON
// fallback for structured payloads:
//
//	client event (compact):  e|<short id>|<event name>|<value>|<0/1>|<tag>
//	keepalive:               p
//	patch batch:             {"t":"p","c":"<short id>","d":["t|sel|text",...]}
//	client event (fallback): {"type":"event","componentId":...,"eventName":...}
//
// Decoding is defensive: an empty string, the literal "null", or a
// non-object JSON payload decode to a no-op message rather than an error,
// so a misbehaving client can never wedge a connection's read loop.
package protocol

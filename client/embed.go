// Package client embeds the browser runtime served at /verve/client.js.
package client

import _ "embed"

// VerveJS is the browser runtime: delegated event capture, compact event
// encoding, in-order patch application, keepalive, and bounded reconnect.
//
//go:embed verve.js
var VerveJS []byte

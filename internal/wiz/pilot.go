// Package wiz speaks the WiZ local UDP protocol: setPilot color commands and
// registration-based bulb discovery.
package wiz

import (
	"encoding/json"

	"github.com/linuxmatters/wizsync/internal/config"
)

// DefaultPort is the UDP port WiZ bulbs listen on.
const DefaultPort = 38899

// PilotParams is the setPilot parameter object. Dimming carries the
// brightness on the same 0..255 scale as the color channels.
type PilotParams struct {
	R       uint8 `json:"r"`
	G       uint8 `json:"g"`
	B       uint8 `json:"b"`
	Dimming int   `json:"dimming"`
}

type request struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// SetPilot encodes a setPilot request.
func SetPilot(color config.RGB, dimming int) ([]byte, error) {
	return json.Marshal(request{
		Method: "setPilot",
		Params: PilotParams{R: color.R, G: color.G, B: color.B, Dimming: dimming},
	})
}

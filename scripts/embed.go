// Package scripts embeds the Risor extraction scripts.
package scripts

import "embed"

// FS holds extract/*.risor.
//
//go:embed extract/*.risor
var FS embed.FS

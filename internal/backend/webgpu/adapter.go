package webgpu

import (
	"fmt"
	"strings"
)

// displayName names the backend after the adapter's device, falling back to
// its vendor and then to plain "WebGPU".
func displayName(device, vendor string) string {
	if device = strings.TrimSpace(device); device != "" {
		return fmt.Sprintf("WebGPU (%s)", device)
	}
	if vendor = strings.TrimSpace(vendor); vendor != "" {
		return fmt.Sprintf("WebGPU (%s)", vendor)
	}
	return "WebGPU"
}

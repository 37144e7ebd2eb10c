// Package wgpu assembles a gpuctx.Context from real hardware through
// gogpu/wgpu's HAL.
//
// The resource layer only consumes a context; this package is the one place
// that constructs one. Hosts embedded in a larger gogpu application that
// already owns a device should build the gpuctx.Context themselves instead
// of calling NewContext.
//
// wgpu's Go surface does not expose driver pipeline-cache objects yet, so
// this backend keeps their serialized bytes in memory; persistence still
// round-trips, and the real driver object can be attached once the API
// lands.
package wgpu

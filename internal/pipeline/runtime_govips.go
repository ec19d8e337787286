//go:build govips && cgo

package pipeline

import (
	"sync/atomic"

	"github.com/davidbyttow/govips/v2/vips"
)

var vipsRunning atomic.Bool

// Startup initializes libvips for a single export. A run converts one image,
// so the operation cache stays small and one worker thread is enough.
func Startup() error {
	if !vipsRunning.CompareAndSwap(false, true) {
		return nil
	}
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheFiles:    0,
		MaxCacheMem:      16 << 20,
		MaxCacheSize:     8,
	})
	return nil
}

func Shutdown() {
	if vipsRunning.CompareAndSwap(true, false) {
		vips.Shutdown()
	}
}

// newExporter routes PNG, JPEG and WebP through libvips; other formats fall
// back to the imaging encoder.
func newExporter(cfg ExportConfig) (Emitter, error) {
	return govipsExporter{cfg: cfg, fallback: imagingExporter{cfg: cfg}}, nil
}

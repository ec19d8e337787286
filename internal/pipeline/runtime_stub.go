//go:build !govips || !cgo

package pipeline

// Startup and Shutdown manage libvips in govips builds and do nothing here.
func Startup() error {
	return nil
}

func Shutdown() {}

// newExporter encodes every format with imaging; WebP needs the govips build.
func newExporter(cfg ExportConfig) (Emitter, error) {
	return imagingExporter{cfg: cfg}, nil
}

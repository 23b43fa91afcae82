//go:build !ORT

package provider

import "github.com/knights-analytics/hugot"

// The default build runs inference on hugot's pure Go backend, so the
// server works without a native onnxruntime install. Build with -tags ORT
// for the faster native runtime.
func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}

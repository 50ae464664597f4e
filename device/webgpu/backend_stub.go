//go:build !gpu

package webgpu

import "github.com/achilleasa/radiance/device"

func init() {
	device.Register(BackendName, func() (device.Backend, error) {
		return nil, device.ErrBackendUnavailable
	})
}

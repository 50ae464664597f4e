// Package webgpu implements the compute backend on top of WebGPU. The WGSL
// kernel library is embedded and can be validated without a GPU; the device
// backend itself is only built with the gpu build tag.
package webgpu

import (
	"embed"
	"fmt"
	"time"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/log"
	"github.com/gogpu/naga"
)

// BackendName is the name the WebGPU backend registers under.
const BackendName = "webgpu"

// Entry point name shared by all kernels.
const entryPoint = "main"

// Workgroup size used by all kernels.
const workgroupSize = 64

//go:embed kernels/*.wgsl
var kernelFS embed.FS

var logger = log.New("webgpu")

// Source returns the WGSL source for the named kernel.
func Source(name string) (string, error) {
	data, err := kernelFS.ReadFile("kernels/" + name + ".wgsl")
	if err != nil {
		return "", fmt.Errorf("webgpu: %w %q", device.ErrUnknownKernel, name)
	}
	return string(data), nil
}

// ValidationResult describes the outcome of compiling one kernel.
type ValidationResult struct {
	Kernel      string
	SPIRVBytes  int
	CompileTime time.Duration
	Err         error
}

// Validate compiles every kernel of the library to SPIR-V with naga and
// reports the per-kernel outcome.
func Validate() []ValidationResult {
	results := make([]ValidationResult, 0, len(device.KernelNames))
	for _, name := range device.KernelNames {
		res := ValidationResult{Kernel: name}
		src, err := Source(name)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}

		tick := time.Now()
		spirv, err := naga.Compile(src)
		res.CompileTime = time.Since(tick)
		if err != nil {
			res.Err = fmt.Errorf("webgpu: kernel %s: %w", name, err)
		}
		res.SPIRVBytes = len(spirv)
		results = append(results, res)
	}
	return results
}

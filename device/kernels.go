package device

// Names of the kernels every backend must provide.
const (
	// accumulate(src, dst Buffer, numPixels uint32): dst += src over
	// numPixels float4 pixels.
	KernelAccumulate = "accumulate"

	// divide(src, dst Buffer, numPixels uint32): dst.rgb = src.rgb / src.w.
	KernelDivide = "divide"

	// depth_to_image(src, dst Buffer, numPixels uint32, near, far float32).
	KernelDepthToImage = "depth_to_image"

	// flip_vertical(src, dst Buffer, width, height uint32).
	KernelFlipVertical = "flip_vertical"

	// copy_image(src, dst Buffer, width, height uint32).
	KernelCopyImage = "copy_image"

	// fixed_exposure(src, dst Buffer, numPixels uint32, exposure float32).
	KernelFixedExposure = "fixed_exposure"

	// render_pass(camera, env, lights, color, depth, normals Buffer,
	// width, height, seed uint32).
	KernelRenderPass = "render_pass"

	// fisheye_to_equirect(src, dst Buffer, width, height uint32, yaw, pitch float32).
	KernelFisheyeToEquirect = "fisheye_to_equirect"

	// cubemap_to_sphere(src, dst Buffer, width, height uint32, yaw, pitch float32).
	KernelCubemapToSphere = "cubemap_to_sphere"
)

// KernelNames lists all kernels in the library.
var KernelNames = []string{
	KernelAccumulate,
	KernelDivide,
	KernelDepthToImage,
	KernelFlipVertical,
	KernelCopyImage,
	KernelFixedExposure,
	KernelRenderPass,
	KernelFisheyeToEquirect,
	KernelCubemapToSphere,
}

// Buffer layout constants shared by the kernel library and its callers.
const (
	// Color and normal buffers store 4 floats per pixel. The fourth color
	// channel carries the accumulated sample weight.
	PixelStride = 4

	// Camera block layout (see scene.Camera.Encode).
	CameraBlockSize = 20

	// Environment table header: width, height, multiplier, reserved.
	EnvHeaderSize = 4

	// Light table record: position xyz, radius, emission rgb, reserved.
	LightRecordSize = 8
)

package host

import (
	"math"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/types"
)

var kernelLibrary = map[string]kernelDef{
	device.KernelAccumulate:        {"bbu", accumulate},
	device.KernelDivide:            {"bbu", divide},
	device.KernelDepthToImage:      {"bbuff", depthToImage},
	device.KernelFlipVertical:      {"bbuu", flipVertical},
	device.KernelCopyImage:         {"bbuu", copyImage},
	device.KernelFixedExposure:     {"bbuf", fixedExposure},
	device.KernelRenderPass:        {"bbbbbbuuu", renderPass},
	device.KernelFisheyeToEquirect: {"bbuuff", fisheyeToEquirect},
	device.KernelCubemapToSphere:   {"bbuuff", cubemapToSphere},
}

const stride = device.PixelStride

// Clamp the pixel range so out-of-bounds dispatches never touch memory past
// the smaller of the two buffers.
func pixelLimit(end int, bufs ...[]float32) int {
	for _, buf := range bufs {
		if n := len(buf) / stride; n < end {
			end = n
		}
	}
	return end
}

func accumulate(a args, _ [2]int, start, end int) {
	src, dst, numPixels := a.buf(0), a.buf(1), int(a.u32(2))
	if numPixels < end {
		end = numPixels
	}
	end = pixelLimit(end, src, dst)
	for i := start * stride; i < end*stride; i++ {
		dst[i] += src[i]
	}
}

func divide(a args, _ [2]int, start, end int) {
	src, dst, numPixels := a.buf(0), a.buf(1), int(a.u32(2))
	if numPixels < end {
		end = numPixels
	}
	end = pixelLimit(end, src, dst)
	for i := start; i < end; i++ {
		o := i * stride
		var scale float32
		if w := src[o+3]; w > 0 {
			scale = 1.0 / w
		}
		dst[o] = src[o] * scale
		dst[o+1] = src[o+1] * scale
		dst[o+2] = src[o+2] * scale
		dst[o+3] = 1
	}
}

func depthToImage(a args, _ [2]int, start, end int) {
	src, dst, numPixels := a.buf(0), a.buf(1), int(a.u32(2))
	near, far := a.f32(3), a.f32(4)
	if numPixels < end {
		end = numPixels
	}
	if len(src) < end {
		end = len(src)
	}
	end = pixelLimit(end, dst)
	span := far - near
	if span <= 0 {
		span = 1
	}
	for i := start; i < end; i++ {
		v := 1 - types.Clamp((src[i]-near)/span, 0, 1)
		o := i * stride
		dst[o], dst[o+1], dst[o+2], dst[o+3] = v, v, v, 1
	}
}

func flipVertical(a args, _ [2]int, start, end int) {
	src, dst := a.buf(0), a.buf(1)
	width, height := int(a.u32(2)), int(a.u32(3))
	end = pixelLimit(end, src, dst)
	if width*height < end {
		end = width * height
	}
	for i := start; i < end; i++ {
		x, y := i%width, i/width
		so := i * stride
		do := ((height-1-y)*width + x) * stride
		copy(dst[do:do+stride], src[so:so+stride])
	}
}

func copyImage(a args, _ [2]int, start, end int) {
	src, dst := a.buf(0), a.buf(1)
	width, height := int(a.u32(2)), int(a.u32(3))
	end = pixelLimit(end, src, dst)
	if width*height < end {
		end = width * height
	}
	if start < end {
		copy(dst[start*stride:end*stride], src[start*stride:end*stride])
	}
}

func fixedExposure(a args, _ [2]int, start, end int) {
	src, dst, numPixels := a.buf(0), a.buf(1), int(a.u32(2))
	exposure := float64(a.f32(3))
	if numPixels < end {
		end = numPixels
	}
	end = pixelLimit(end, src, dst)
	for i := start; i < end; i++ {
		o := i * stride
		for c := 0; c < 3; c++ {
			dst[o+c] = float32(1 - math.Exp(-float64(src[o+c])*exposure))
		}
		dst[o+3] = 1
	}
}

// A camera block decoded from its buffer encoding.
type cameraBlock struct {
	pos, forward, right, up types.Vec3
	kind                    int
	sensor                  types.Vec2
	focal, near, far        float32
	focus, aperture         float32
}

func decodeCamera(b []float32) cameraBlock {
	return cameraBlock{
		pos:      types.XYZ(b[0], b[1], b[2]),
		kind:     int(b[3]),
		forward:  types.XYZ(b[4], b[5], b[6]),
		right:    types.XYZ(b[8], b[9], b[10]),
		up:       types.XYZ(b[12], b[13], b[14]),
		sensor:   types.XY(b[7], b[11]),
		focal:    b[15],
		near:     b[16],
		far:      b[17],
		focus:    b[18],
		aperture: b[19],
	}
}

// Generate a primary ray for pixel (x, y) given two pairs of random numbers
// for pixel and lens jitter.
func (c cameraBlock) ray(x, y, width, height int, jitter, lens types.Vec2) (types.Vec3, types.Vec3) {
	u := (float32(x) + jitter[0]) / float32(width)
	v := (float32(y) + jitter[1]) / float32(height)

	// Spherical equirectangular camera
	if c.kind == 2 {
		phi := float64(u)*2*math.Pi - math.Pi
		theta := float64(v) * math.Pi
		st, ct := math.Sincos(theta)
		sp, cp := math.Sincos(phi)
		dir := c.right.Mul(float32(st * sp)).Add(c.up.Mul(float32(ct))).Add(c.forward.Mul(float32(st * cp)))
		return c.pos, dir.Normalize()
	}

	px := (u - 0.5) * c.sensor[0]
	py := (0.5 - v) * c.sensor[1]
	dir := c.forward.Mul(c.focal).Add(c.right.Mul(px)).Add(c.up.Mul(py)).Normalize()

	// Thin lens depth of field
	if c.kind == 1 && c.aperture > 0 && c.focus > 0 {
		r := float32(math.Sqrt(float64(lens[0]))) * c.aperture * 0.5
		angle := float64(lens[1]) * 2 * math.Pi
		origin := c.pos.Add(c.right.Mul(r * float32(math.Cos(angle)))).Add(c.up.Mul(r * float32(math.Sin(angle))))
		focusPoint := c.pos.Add(dir.Mul(c.focus / dir.Dot(c.forward)))
		return origin, focusPoint.Sub(origin).Normalize()
	}

	return c.pos, dir
}

// PCG style integer hash.
func hash(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

func unitFloat(v uint32) float32 {
	return float32(v>>8) / float32(1<<24)
}

// Sample the environment table in the direction dir.
func sampleEnv(env []float32, dir types.Vec3) types.Vec3 {
	envW, envH := int(env[0]), int(env[1])
	if envW <= 0 || envH <= 0 {
		t := 0.5 * (dir[1] + 1)
		return types.XYZ(1, 1, 1).Mul(1 - t).Add(types.XYZ(0.5, 0.7, 1.0).Mul(t))
	}

	u := math.Atan2(float64(dir[0]), float64(-dir[2]))/(2*math.Pi) + 0.5
	v := math.Acos(float64(types.Clamp(dir[1], -1, 1))) / math.Pi
	x := int(u * float64(envW))
	y := int(v * float64(envH))
	if x >= envW {
		x = envW - 1
	}
	if y >= envH {
		y = envH - 1
	}
	o := device.EnvHeaderSize + (y*envW+x)*stride
	return types.XYZ(env[o], env[o+1], env[o+2]).Mul(env[2])
}

func renderPass(a args, dims [2]int, start, end int) {
	cam := decodeCamera(a.buf(0))
	env, lights := a.buf(1), a.buf(2)
	color, depth, normals := a.buf(3), a.buf(4), a.buf(5)
	width, height, seed := int(a.u32(6)), int(a.u32(7)), a.u32(8)

	if width*height < end {
		end = width * height
	}
	end = pixelLimit(end, color, normals)
	if len(depth) < end {
		end = len(depth)
	}

	for i := start; i < end; i++ {
		h0 := hash(seed ^ hash(uint32(i)))
		h1 := hash(h0)
		h2 := hash(h1)
		h3 := hash(h2)
		origin, dir := cam.ray(i%width, i/width, width, height, types.XY(unitFloat(h0), unitFloat(h1)), types.XY(unitFloat(h2), unitFloat(h3)))

		var sample, normal types.Vec3
		dist := cam.far

		// Ground plane at y = 0
		hit := false
		if dir[1] < -1e-6 && origin[1] > 0 {
			t := -origin[1] / dir[1]
			if t >= cam.near && t <= cam.far {
				hit = true
				dist = t
				normal = types.XYZ(0, 1, 0)
				p := origin.Add(dir.Mul(t))

				albedo := float32(0.18)
				if (int(math.Floor(float64(p[0])))+int(math.Floor(float64(p[2]))))&1 == 0 {
					albedo = 0.5
				}

				irradiance := sampleEnv(env, normal).Mul(0.3)
				for l := 0; l+device.LightRecordSize <= len(lights); l += device.LightRecordSize {
					toLight := types.XYZ(lights[l], lights[l+1], lights[l+2]).Sub(p)
					d2 := toLight.Dot(toLight)
					if d2 <= 0 {
						continue
					}
					cos := normal.Dot(toLight.Normalize())
					if cos <= 0 {
						continue
					}
					irradiance = irradiance.Add(types.XYZ(lights[l+4], lights[l+5], lights[l+6]).Mul(cos / d2))
				}
				sample = irradiance.Mul(albedo)
			}
		}
		if !hit {
			sample = sampleEnv(env, dir)
		}

		o := i * stride
		color[o] += sample[0]
		color[o+1] += sample[1]
		color[o+2] += sample[2]
		color[o+3] += 1
		depth[i] = dist
		normals[o], normals[o+1], normals[o+2], normals[o+3] = normal[0], normal[1], normal[2], 0
	}
}

// Map an equirectangular pixel to a world direction, applying yaw (about +Y)
// and pitch (about +X).
func equirectDir(x, y, width, height int, yaw, pitch float32) types.Vec3 {
	phi := (float64(x)+0.5)/float64(width)*2*math.Pi - math.Pi
	theta := (float64(y) + 0.5) / float64(height) * math.Pi
	dir := types.SphericalDir(float32(theta), float32(phi))
	rot := types.QuatFromAxisAngle(types.XYZ(0, 1, 0), -yaw).Mul(types.QuatFromAxisAngle(types.XYZ(1, 0, 0), pitch))
	return rot.Rotate(dir)
}

func fisheyeToEquirect(a args, _ [2]int, start, end int) {
	src, dst := a.buf(0), a.buf(1)
	width, height := int(a.u32(2)), int(a.u32(3))
	yaw, pitch := a.f32(4), a.f32(5)
	end = pixelLimit(end, src, dst)
	if width*height < end {
		end = width * height
	}

	for i := start; i < end; i++ {
		o := i * stride
		dir := equirectDir(i%width, i/width, width, height, yaw, pitch)

		// Equidistant 180 degree fisheye looking down -Z
		alpha := math.Acos(float64(types.Clamp(-dir[2], -1, 1)))
		if alpha > math.Pi/2 {
			dst[o], dst[o+1], dst[o+2], dst[o+3] = 0, 0, 0, 1
			continue
		}
		r := alpha / (math.Pi / 2) * 0.5
		beta := math.Atan2(float64(dir[1]), float64(dir[0]))
		sx := int((0.5 + r*math.Cos(beta)) * float64(width))
		sy := int((0.5 - r*math.Sin(beta)) * float64(height))
		so := (clampIndex(sy, height)*width + clampIndex(sx, width)) * stride
		copy(dst[o:o+stride], src[so:so+stride])
	}
}

func cubemapToSphere(a args, _ [2]int, start, end int) {
	src, dst := a.buf(0), a.buf(1)
	width, height := int(a.u32(2)), int(a.u32(3))
	yaw, pitch := a.f32(4), a.f32(5)
	end = pixelLimit(end, src, dst)
	if width*height < end {
		end = width * height
	}
	faceW := width / 6
	if faceW == 0 {
		faceW = 1
	}

	for i := start; i < end; i++ {
		o := i * stride
		face, u, v := cubeFace(equirectDir(i%width, i/width, width, height, yaw, pitch))
		sx := face*faceW + clampIndex(int(u*float32(faceW)), faceW)
		sy := clampIndex(int(v*float32(height)), height)
		so := (sy*width + clampIndex(sx, width)) * stride
		copy(dst[o:o+stride], src[so:so+stride])
	}
}

// Select the cube face (+X, -X, +Y, -Y, +Z, -Z) hit by dir and return the
// face-local texture coordinates in [0, 1].
func cubeFace(dir types.Vec3) (int, float32, float32) {
	ax, ay, az := abs32(dir[0]), abs32(dir[1]), abs32(dir[2])

	var face int
	var ma, sc, tc float32
	switch {
	case ax >= ay && ax >= az && dir[0] >= 0:
		face, ma, sc, tc = 0, ax, -dir[2], -dir[1]
	case ax >= ay && ax >= az:
		face, ma, sc, tc = 1, ax, dir[2], -dir[1]
	case ay >= az && dir[1] >= 0:
		face, ma, sc, tc = 2, ay, dir[0], dir[2]
	case ay >= az:
		face, ma, sc, tc = 3, ay, dir[0], -dir[2]
	case dir[2] >= 0:
		face, ma, sc, tc = 4, az, dir[0], -dir[1]
	default:
		face, ma, sc, tc = 5, az, -dir[0], -dir[1]
	}
	if ma == 0 {
		return face, 0.5, 0.5
	}
	return face, (sc/ma + 1) * 0.5, (tc/ma + 1) * 0.5
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clampIndex(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

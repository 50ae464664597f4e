package scene

import (
	"fmt"
	"math"

	"github.com/achilleasa/radiance/device"
	"github.com/achilleasa/radiance/types"
)

type CameraKind uint8

// Supported camera kinds.
const (
	Perspective CameraKind = iota
	PerspectiveDOF
	SphericalEquirect
)

func (k CameraKind) String() string {
	switch k {
	case Perspective:
		return "perspective"
	case PerspectiveDOF:
		return "perspective_dof"
	case SphericalEquirect:
		return "spherical_equirect"
	}
	return fmt.Sprintf("CameraKind(%d)", uint8(k))
}

// ParseCameraKind maps a camera kind name to a CameraKind.
func ParseCameraKind(name string) (CameraKind, error) {
	switch name {
	case "perspective", "":
		return Perspective, nil
	case "perspective_dof", "perspective_with_depth_of_field":
		return PerspectiveDOF, nil
	case "spherical_equirect", "spherical_equirectangular":
		return SphericalEquirect, nil
	}
	return Perspective, fmt.Errorf("scene: unknown camera kind %q", name)
}

// Keep the polar angle away from the poles so the basis never degenerates.
const minPolarAngle = 0.01

var worldUp = types.XYZ(0, 1, 0)

// The camera type controls the scene camera. Its orientation is stored as
// spherical angles: Theta is the polar angle from +Y and Phi the azimuth
// from -Z towards +X.
type Camera struct {
	Kind     CameraKind
	Position types.Vec3
	Theta    float32
	Phi      float32

	// Physical camera parameters in meters.
	SensorSize    types.Vec2
	DepthRange    types.Vec2
	FocalLength   float32
	FocusDistance float32
	Aperture      float32

	// Stereo eye offset along the right vector and convergence distance.
	StereoDisplacement float32
	StereoDistance     float32
}

// DefaultCamera returns a perspective camera at (0, 1, 4) looking down -Z.
func DefaultCamera() Camera {
	return Camera{
		Kind:        Perspective,
		Position:    types.XYZ(0, 1, 4),
		Theta:       math.Pi / 2,
		Phi:         0,
		SensorSize:  types.XY(0.036, 0.024),
		DepthRange:  types.XY(0, 100000),
		FocalLength: 0.035,
	}
}

// Forward returns the unit view direction.
func (c Camera) Forward() types.Vec3 {
	return types.SphericalDir(c.Theta, c.Phi)
}

// Basis returns the forward, right and up unit vectors.
func (c Camera) Basis() (types.Vec3, types.Vec3, types.Vec3) {
	return basis(c.Forward())
}

func basis(forward types.Vec3) (types.Vec3, types.Vec3, types.Vec3) {
	right := forward.Cross(worldUp).Normalize()
	if right == (types.Vec3{}) {
		right = types.XYZ(1, 0, 0)
	}
	up := right.Cross(forward).Normalize()
	return forward, right, up
}

// MoveForward moves the camera along its view direction.
func (c *Camera) MoveForward(dist float32) {
	c.Position = c.Position.Add(c.Forward().Mul(dist))
}

// MoveRight strafes the camera along its right vector.
func (c *Camera) MoveRight(dist float32) {
	_, right, _ := c.Basis()
	c.Position = c.Position.Add(right.Mul(dist))
}

// MoveUp moves the camera along the world up axis.
func (c *Camera) MoveUp(dist float32) {
	c.Position = c.Position.Add(worldUp.Mul(dist))
}

// Rotate applies a yaw (about world up) and a pitch (about the camera right
// vector) to the view direction.
func (c *Camera) Rotate(yaw, pitch float32) {
	forward, right, _ := c.Basis()
	yawQuat := types.QuatFromAxisAngle(worldUp, yaw)
	pitchQuat := types.QuatFromAxisAngle(right, pitch)
	dir := yawQuat.Mul(pitchQuat).Normalize().Rotate(forward)
	c.setDirection(dir)
}

// Tilt changes the polar angle directly.
func (c *Camera) Tilt(delta float32) {
	c.Theta = types.Clamp(c.Theta+delta, minPolarAngle, math.Pi-minPolarAngle)
}

// LookAt orients the camera towards target.
func (c *Camera) LookAt(target types.Vec3) {
	c.setDirection(target.Sub(c.Position))
}

func (c *Camera) setDirection(dir types.Vec3) {
	dir = dir.Normalize()
	if dir == (types.Vec3{}) {
		return
	}
	theta := float32(math.Acos(float64(types.Clamp(dir[1], -1, 1))))
	c.Theta = types.Clamp(theta, minPolarAngle, math.Pi-minPolarAngle)
	c.Phi = float32(math.Atan2(float64(dir[0]), float64(-dir[2])))
}

// Encode writes the camera block consumed by the render kernel into dst,
// which must hold at least device.CameraBlockSize elements. Stereo offsets
// are applied to the encoded eye position and view direction.
func (c Camera) Encode(dst []float32) {
	forward, right, up := c.Basis()
	pos := c.Position
	if c.StereoDisplacement != 0 {
		pos = pos.Add(right.Mul(c.StereoDisplacement))
		if c.StereoDistance > 0 {
			target := c.Position.Add(forward.Mul(c.StereoDistance))
			forward, right, up = basis(target.Sub(pos).Normalize())
		}
	}

	block := [device.CameraBlockSize]float32{
		pos[0], pos[1], pos[2], float32(c.Kind),
		forward[0], forward[1], forward[2], c.SensorSize[0],
		right[0], right[1], right[2], c.SensorSize[1],
		up[0], up[1], up[2], c.FocalLength,
		c.DepthRange[0], c.DepthRange[1], c.FocusDistance, c.Aperture,
	}
	copy(dst, block[:])
}

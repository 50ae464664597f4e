package types

import (
	"math"
	"testing"
)

func TestSphericalDir(t *testing.T) {
	type spec struct {
		theta, phi float32
		exp        Vec3
	}

	halfPi := float32(math.Pi / 2)
	specs := []spec{
		{halfPi, 0, XYZ(0, 0, -1)},
		{halfPi, halfPi, XYZ(1, 0, 0)},
		{0, 0, XYZ(0, 1, 0)},
	}

	for index, s := range specs {
		got := SphericalDir(s.theta, s.phi)
		if !got.ApproxEqual(s.exp) {
			t.Fatalf("[spec %d] expected dir %v; got %v", index, s.exp, got)
		}
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(XYZ(0, 1, 0), float32(math.Pi/2))
	got := q.Rotate(XYZ(1, 0, 0))
	exp := XYZ(0, 0, -1)
	if !got.ApproxEqual(exp) {
		t.Fatalf("expected rotated vector %v; got %v", exp, got)
	}

	// Two quarter turns compose into a half turn.
	half := q.Mul(q).Normalize().Rotate(XYZ(1, 0, 0))
	if !half.ApproxEqual(XYZ(-1, 0, 0)) {
		t.Fatalf("expected composed rotation to flip the input; got %v", half)
	}

	scaled := Quat{V: q.V.Mul(3), W: q.W * 3}.Normalize()
	if !scaled.Rotate(XYZ(1, 0, 0)).ApproxEqual(exp) {
		t.Fatalf("expected normalized quaternion to rotate like the unit one; got %+v", scaled)
	}
	if id := (Quat{}).Normalize(); id != (Quat{W: 1}) {
		t.Fatalf("expected zero quaternion to normalize to identity; got %+v", id)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("expected zero vector; got %v", got)
	}
	if got := XYZ(0, 3, 4).Normalize(); !got.ApproxEqual(XYZ(0, 0.6, 0.8)) {
		t.Fatalf("expected unit vector; got %v", got)
	}
}

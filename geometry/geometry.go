// Package geometry implements the pose/orientation math shared by every
// skill and engine: points, quaternions, and poses.
package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Point is a position in three-space.
type Point struct {
	X, Y, Z float64
}

// Vec3 returns the mathgl vector form of p.
func (p Point) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}

// PointFromVec3 builds a Point from a mathgl vector.
func PointFromVec3(v mgl64.Vec3) Point {
	return Point{v[0], v[1], v[2]}
}

// Add returns p+o.
func (p Point) Add(o Point) Point {
	return PointFromVec3(p.Vec3().Add(o.Vec3()))
}

// Sub returns p-o.
func (p Point) Sub(o Point) Point {
	return PointFromVec3(p.Vec3().Sub(o.Vec3()))
}

// Scale returns p*s.
func (p Point) Scale(s float64) Point {
	return PointFromVec3(p.Vec3().Mul(s))
}

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 {
	return p.Vec3().Len()
}

// Lerp linearly interpolates between p and o at t in [0,1].
func Lerp(p, o Point, t float64) Point {
	return p.Add(o.Sub(p).Scale(t))
}

// Quaternion is stored in (x, y, z, w) order to match the wire format in §3.
type Quaternion struct {
	X, Y, Z, W float64
}

// Identity is the zero-rotation quaternion (0,0,0,1).
var Identity = Quaternion{0, 0, 0, 1}

func (q Quaternion) mgl() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

func fromMgl(q mgl64.Quat) Quaternion {
	return Quaternion{q.V[0], q.V[1], q.V[2], q.W}
}

// Multiply returns the Hamilton product q*o (apply o first, then q).
func (q Quaternion) Multiply(o Quaternion) Quaternion {
	return fromMgl(q.mgl().Mul(o.mgl()))
}

// Conjugate returns the conjugate of q.
func (q Quaternion) Conjugate() Quaternion {
	return fromMgl(q.mgl().Conjugate())
}

// Normalize returns q scaled to unit length.
func (q Quaternion) Normalize() Quaternion {
	return fromMgl(q.mgl().Normalize())
}

// RotateVector rotates v by q: q.v.q*
func (q Quaternion) RotateVector(v Point) Point {
	return PointFromVec3(q.mgl().Rotate(v.Vec3()))
}

// Dot returns the 4-component dot product of q and o.
func (q Quaternion) Dot(o Quaternion) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Slerp spherically interpolates from q to o at t in [0,1], renormalizing
// both inputs first per spec.md §4.A.
func Slerp(q, o Quaternion, t float64) Quaternion {
	q = q.Normalize()
	o = o.Normalize()

	cosOmega := q.Dot(o)
	// Take the shorter path.
	if cosOmega < 0 {
		o = Quaternion{-o.X, -o.Y, -o.Z, -o.W}
		cosOmega = -cosOmega
	}
	const epsilon = 1e-9
	if cosOmega > 1-epsilon {
		// Nearly identical; linear interpolation avoids a divide-by-zero.
		return Quaternion{
			X: q.X + t*(o.X-q.X),
			Y: q.Y + t*(o.Y-q.Y),
			Z: q.Z + t*(o.Z-q.Z),
			W: q.W + t*(o.W-q.W),
		}.Normalize()
	}

	omega := math.Acos(cosOmega)
	sinOmega := math.Sin(omega)
	s1 := math.Sin((1-t)*omega) / sinOmega
	s2 := math.Sin(t*omega) / sinOmega
	return Quaternion{
		X: s1*q.X + s2*o.X,
		Y: s1*q.Y + s2*o.Y,
		Z: s1*q.Z + s2*o.Z,
		W: s1*q.W + s2*o.W,
	}
}

// FromEuler builds a quaternion from roll/pitch/yaw (radians), for skill
// authors who prefer Euler input. The pipeline itself only ever passes
// quaternions.
func FromEuler(roll, pitch, yaw float64) Quaternion {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)

	return Quaternion{
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}

// Euler returns the roll/pitch/yaw (radians) equivalent of q (ZYX convention,
// matching FromEuler).
func (q Quaternion) Euler() (roll, pitch, yaw float64) {
	q = q.Normalize()

	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll = math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	switch {
	case sinp >= 1:
		pitch = math.Pi / 2
	case sinp <= -1:
		pitch = -math.Pi / 2
	default:
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw = math.Atan2(sinyCosp, cosyCosp)

	return roll, pitch, yaw
}

// Pose is a position + orientation.
type Pose struct {
	Position    Point
	Orientation Quaternion
}

// IdentityPose is the origin with identity orientation.
var IdentityPose = Pose{Point{}, Identity}

// Transform applies this pose as a rigid transform to a point expressed in
// this pose's local frame, returning the point in the parent frame.
func (p Pose) Transform(local Point) Point {
	return p.Position.Add(p.Orientation.RotateVector(local))
}

// Compose returns the pose of `o` expressed in `p`'s frame, applied on top
// of p (p * o).
func (p Pose) Compose(o Pose) Pose {
	return Pose{
		Position:    p.Transform(o.Position),
		Orientation: p.Orientation.Multiply(o.Orientation),
	}
}

// LerpPose linearly interpolates position and slerps orientation.
func LerpPose(a, b Pose, t float64) Pose {
	return Pose{
		Position:    Lerp(a.Position, b.Position, t),
		Orientation: Slerp(a.Orientation, b.Orientation, t),
	}
}

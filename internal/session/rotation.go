package session

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// EulerToQuat converts extrinsic xyz Euler angles in degrees to a quaternion.
func EulerToQuat(deg Vec3) Quat {
	half := func(d float64) (float64, float64) {
		r := d * math.Pi / 360
		return math.Cos(r), math.Sin(r)
	}
	cx, sx := half(deg[0])
	cy, sy := half(deg[1])
	cz, sz := half(deg[2])

	qx := quat.Number{Real: cx, Imag: sx}
	qy := quat.Number{Real: cy, Jmag: sy}
	qz := quat.Number{Real: cz, Kmag: sz}

	// extrinsic x then y then z
	q := quat.Mul(qz, quat.Mul(qy, qx))
	return Quat{q.Imag, q.Jmag, q.Kmag, q.Real}
}

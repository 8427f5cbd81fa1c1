package model

import "fmt"

// Plane selects which axis-aligned cutting plane of the 3D lattice is
// projected onto the 2D viewport.
type Plane string

const (
	PlaneXY Plane = "xy"
	PlaneXZ Plane = "xz"
	PlaneYZ Plane = "yz"
)

// ParsePlane validates a plane selector string.
func ParsePlane(s string) (Plane, error) {
	switch Plane(s) {
	case PlaneXY, PlaneXZ, PlaneYZ:
		return Plane(s), nil
	}
	return "", fmt.Errorf("unknown cutting plane %q (want xy, xz, or yz)", s)
}

// Axes returns the entity-position components for the selected plane:
// the two in-plane axes (horizontal, vertical) and the depth axis compared
// against the slice threshold.
func (p Plane) Axes(pos Vec3) (h, v, depth float64) {
	switch p {
	case PlaneXZ:
		return pos.X, pos.Z, pos.Y
	case PlaneYZ:
		return pos.Y, pos.Z, pos.X
	default: // xy
		return pos.X, pos.Y, pos.Z
	}
}

package gpuruntime

import "fmt"

// Dim3 is a three-component launch or index extent.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the number of elements covered by the extent.
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

func (d Dim3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", d.X, d.Y, d.Z)
}

// Version is a two-component version such as a compute capability (7.5)
// or a PTX ISA revision (6.3).
type Version struct {
	Major int
	Minor int
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion parses "major.minor".
func ParseVersion(s string) (Version, error) {
	var v Version
	if _, err := fmt.Sscanf(s, "%d.%d", &v.Major, &v.Minor); err != nil {
		return Version{}, fmt.Errorf("parse version %q: %w", s, err)
	}
	if v.Major < 0 || v.Minor < 0 {
		return Version{}, fmt.Errorf("parse version %q: negative component", s)
	}
	return v, nil
}

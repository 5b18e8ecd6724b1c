package version

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer is a MAJOR.MINOR.PATCH version with optional pre-release and build suffixes,
// the format clusters report in their root endpoint.
type SemVer struct {
	Major, Minor, Patch int64

	PreRelease string
	Build      string
}

// Parse reads a version such as "8.11.3", "v2.11.1" or "8.0.0-rc.1+build.5".
func Parse(raw string) (SemVer, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	if s == "" {
		return SemVer{}, fmt.Errorf("invalid semantic version %q: empty", raw)
	}

	var v SemVer
	s, build, hasBuild := strings.Cut(s, "+")
	s, pre, hasPre := strings.Cut(s, "-")
	v.PreRelease, v.Build = pre, build

	core := strings.Split(s, ".")
	if len(core) != 3 {
		return SemVer{}, fmt.Errorf("invalid semantic version %q: want MAJOR.MINOR.PATCH", raw)
	}
	for i, dst := range []*int64{&v.Major, &v.Minor, &v.Patch} {
		n, err := numericIdentifier(core[i])
		if err != nil {
			return SemVer{}, fmt.Errorf("invalid semantic version %q: %w", raw, err)
		}
		*dst = n
	}

	if err := checkIdentifiers(pre, hasPre, true); err != nil {
		return SemVer{}, fmt.Errorf("invalid semantic version %q: %w", raw, err)
	}
	if err := checkIdentifiers(build, hasBuild, false); err != nil {
		return SemVer{}, fmt.Errorf("invalid semantic version %q: %w", raw, err)
	}
	return v, nil
}

// MustParse is Parse for package level constants.
func MustParse(raw string) SemVer {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func (v SemVer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		b.WriteString("-" + v.PreRelease)
	}
	if v.Build != "" {
		b.WriteString("+" + v.Build)
	}
	return b.String()
}

// Compare orders versions by precedence and returns -1, 0 or 1. Build metadata is ignored
// and a pre-release sorts before its release.
func (v SemVer) Compare(other SemVer) int {
	for _, pair := range [][2]int64{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		if c := cmpInt(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	switch {
	case v.PreRelease == other.PreRelease:
		return 0
	case v.PreRelease == "":
		return 1
	case other.PreRelease == "":
		return -1
	}

	left := strings.Split(v.PreRelease, ".")
	right := strings.Split(other.PreRelease, ".")
	for i := 0; i < len(left) && i < len(right); i++ {
		if c := cmpIdentifier(left[i], right[i]); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(left)), int64(len(right)))
}

// cmpIdentifier compares pre-release identifiers: numbers numerically and below words,
// words in ASCII order.
func cmpIdentifier(a, b string) int {
	an, aErr := strconv.ParseInt(a, 10, 64)
	bn, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return cmpInt(an, bn)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func numericIdentifier(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty version number")
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, fmt.Errorf("version number %q has a leading zero", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("version number %q is not numeric", s)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// checkIdentifiers validates a dot separated suffix. present reports whether the
// separator appeared, so "1.0.0-" is rejected.
func checkIdentifiers(suffix string, present, rejectLeadingZero bool) error {
	if !present {
		return nil
	}
	for _, id := range strings.Split(suffix, ".") {
		if id == "" {
			return fmt.Errorf("empty identifier in %q", suffix)
		}
		numeric := true
		for _, r := range id {
			switch {
			case r >= '0' && r <= '9':
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
				numeric = false
			default:
				return fmt.Errorf("invalid character %q in identifier %q", r, id)
			}
		}
		if rejectLeadingZero && numeric && len(id) > 1 && id[0] == '0' {
			return fmt.Errorf("numeric identifier %q has a leading zero", id)
		}
	}
	return nil
}

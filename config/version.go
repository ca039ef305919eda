package config

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// Version is the engine version an index was created with. Validation
// rules that changed between releases consult it instead of hardcoding
// one rule set.
type Version struct {
	v string
}

var (
	V1_7_0       = MustParseVersion("1.7.0")
	V2_0_0_Beta1 = MustParseVersion("2.0.0-beta1")
	V2_0_0       = MustParseVersion("2.0.0")

	CurrentVersion = V2_0_0
)

// ParseVersion accepts "2.0.0", "v2.0.0" and pre-releases like "2.0.0-beta1".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return Version{}, errors.Wrapf(ErrInvalidCfg, "invalid version[%v]", s)
	}
	return Version{v: semver.Canonical(s)}, nil
}

func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) IsZero() bool {
	return v.v == ""
}

func (v Version) OnOrAfter(other Version) bool {
	return semver.Compare(v.v, other.v) >= 0
}

func (v Version) Before(other Version) bool {
	return semver.Compare(v.v, other.v) < 0
}

func (v Version) String() string {
	return strings.TrimPrefix(v.v, "v")
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

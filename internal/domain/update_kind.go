package domain

type Kind string

const (
	KindTag     Kind = "tag"
	KindDigest  Kind = "digest"
	KindUnknown Kind = "unknown"
)

type SemverDiff string

const (
	SemverMajor      SemverDiff = "major"
	SemverMinor      SemverDiff = "minor"
	SemverPatch      SemverDiff = "patch"
	SemverPrerelease SemverDiff = "prerelease"
	SemverUnknown    SemverDiff = "unknown"
)

// UpdateKind describes the magnitude of an available update.
type UpdateKind struct {
	Kind        Kind       `json:"kind"`
	SemverDiff  SemverDiff `json:"semverDiff,omitempty"`
	LocalValue  string     `json:"localValue,omitempty"`
	RemoteValue string     `json:"remoteValue,omitempty"`
}

func (k Kind) IsValid() bool {
	switch k {
	case KindTag, KindDigest, KindUnknown:
		return true
	}
	return false
}

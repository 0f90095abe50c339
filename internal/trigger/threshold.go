package trigger

import (
	"strings"

	"github.com/auto-dns/docker-image-watch/internal/domain"
)

const noDigestSuffix = "-no-digest"

// IsThresholdReached reports whether an update of the given kind is large enough to fire.
//
//	all    every update
//	major  every change
//	minor  everything but semver major
//	patch  everything but semver major and minor
//	digest only non-semver changes
//
// A "-no-digest" suffix additionally rejects digest updates. Tag updates with an
// unknown semver diff always pass.
func IsThresholdReached(threshold string, kind domain.UpdateKind) bool {
	t := strings.ToLower(strings.TrimSpace(threshold))
	if strings.HasSuffix(t, noDigestSuffix) {
		if kind.Kind == domain.KindDigest {
			return false
		}
		t = strings.TrimSuffix(t, noDigestSuffix)
	}

	if kind.Kind == domain.KindTag && (kind.SemverDiff == "" || kind.SemverDiff == domain.SemverUnknown) {
		return true
	}

	switch t {
	case "", "all", "major":
		return true
	case "minor":
		return !(kind.Kind == domain.KindTag && kind.SemverDiff == domain.SemverMajor)
	case "patch":
		return !(kind.Kind == domain.KindTag && (kind.SemverDiff == domain.SemverMajor || kind.SemverDiff == domain.SemverMinor))
	case "digest":
		return kind.Kind != domain.KindTag
	}
	return true
}

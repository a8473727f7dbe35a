package recon

import "slices"

// ExposureSeverity scores a set of exposed paths
func ExposureSeverity(paths []string) string {
	switch {
	case slices.Contains(paths, "/.env"), slices.Contains(paths, "/.git/config"):
		return SeverityHigh
	case slices.Contains(paths, "/admin"), slices.Contains(paths, "/debug"):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// MisconfigurationSeverity scores a set of missing headers
func MisconfigurationSeverity(missing []string) string {
	switch {
	case slices.Contains(missing, "Content-Security-Policy"):
		return SeverityMedium
	case len(missing) >= 3:
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// TakeoverSeverity scores a takeover candidate
func TakeoverSeverity() string {
	return SeverityHigh
}

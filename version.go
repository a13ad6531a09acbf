package supervise

// Version is the current version of the go-supervise library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Protocol is the supervise protocol family supported
	Protocol string
	// RecordSizes lists the status record lengths the decoder accepts
	RecordSizes []int
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:     Version,
		Protocol:    "runit/daemontools",
		RecordSizes: []int{LegacyRecordSize, RecordSize},
	}
}

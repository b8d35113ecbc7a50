package scanning

// ScanOptions tune a single scan run.
type ScanOptions struct {
	// FullScan parses every file even when it looks unchanged.
	FullScan bool `json:"full_scan"`
	// ForceOptimize refreshes the query planner statistics whatever the amount of changes.
	ForceOptimize bool `json:"force_optimize"`
	// Compact rebuilds the database file once the run is over.
	Compact bool `json:"compact"`
}

// Merge combines two pending requests into one run.
func (o ScanOptions) Merge(other ScanOptions) ScanOptions {
	return ScanOptions{
		FullScan:      o.FullScan || other.FullScan,
		ForceOptimize: o.ForceOptimize || other.ForceOptimize,
		Compact:       o.Compact || other.Compact,
	}
}

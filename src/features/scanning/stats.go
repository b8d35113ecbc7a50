package scanning

import (
	"time"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
)

// MaxStoredErrors bounds the errors kept in ScanStats. ErrorsCount keeps
// counting past it.
const MaxStoredErrors = 5000

// ScanStep identifies one pass of the pipeline.
type ScanStep int

const (
	ScanStepScanFiles ScanStep = iota
	ScanStepCheckForRemovedFiles
	ScanStepRemoveOrphanedDbEntries
	ScanStepUpdateLibraryFields
	ScanStepCheckForDuplicatedFiles
	ScanStepAssociateExternalLyrics
	ScanStepAssociatePlayListTracks
	ScanStepReconcileArtistInfos
	ScanStepAssociateImages
	ScanStepOptimize
	ScanStepCompact
)

func (s ScanStep) String() string {
	switch s {
	case ScanStepScanFiles:
		return "ScanFiles"
	case ScanStepCheckForRemovedFiles:
		return "CheckForRemovedFiles"
	case ScanStepRemoveOrphanedDbEntries:
		return "RemoveOrphanedDbEntries"
	case ScanStepUpdateLibraryFields:
		return "UpdateLibraryFields"
	case ScanStepCheckForDuplicatedFiles:
		return "CheckForDuplicatedFiles"
	case ScanStepAssociateExternalLyrics:
		return "AssociateExternalLyrics"
	case ScanStepAssociatePlayListTracks:
		return "AssociatePlayListTracks"
	case ScanStepReconcileArtistInfos:
		return "ReconcileArtistInfos"
	case ScanStepAssociateImages:
		return "AssociateImages"
	case ScanStepOptimize:
		return "Optimize"
	case ScanStepCompact:
		return "Compact"
	default:
		return "Unknown"
	}
}

func (s ScanStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DuplicateReason tells which key a duplicate group shares.
type DuplicateReason string

const (
	DuplicateSamePath      DuplicateReason = "SamePath"
	DuplicateSameFileSize  DuplicateReason = "SameFileSize"
	DuplicateSameTrackMBID DuplicateReason = "SameTrackMBID"
)

// DuplicateGroup is a set of tracks suspected to be copies of each other.
// SameFileSize groups are a heuristic and may hold different recordings.
type DuplicateGroup struct {
	Reason   DuplicateReason `json:"reason"`
	Key      string          `json:"key"`
	TrackIDs []int64         `json:"track_ids"`
	Paths    []string        `json:"paths"`
}

// ScanErrorEntry is the serializable form of a filescan.ScanError.
type ScanErrorEntry struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ScanStats accumulates the outcome of one scan run.
type ScanStats struct {
	ID             string           `json:"id"`
	StartTime      time.Time        `json:"start_time"`
	StopTime       time.Time        `json:"stop_time"`
	Aborted        bool             `json:"aborted"`
	TotalFileCount int              `json:"total_file_count"`
	Scans          int              `json:"scans"`
	Skips          int              `json:"skips"`
	Additions      int              `json:"additions"`
	Updates        int              `json:"updates"`
	Deletions      int              `json:"deletions"`
	Failures       int              `json:"failures"`
	Duplicates     []DuplicateGroup `json:"duplicates"`
	ErrorsCount    int              `json:"errors_count"`
	Errors         []ScanErrorEntry `json:"errors"`
}

// ChangesCount returns the number of records the run added, updated or removed.
func (s *ScanStats) ChangesCount() int {
	return s.Additions + s.Updates + s.Deletions
}

// Duration returns how long the run took, or has taken so far.
func (s *ScanStats) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.StopTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.StopTime.Sub(s.StartTime)
}

func (s *ScanStats) addError(err filescan.ScanError) {
	s.ErrorsCount++
	if len(s.Errors) < MaxStoredErrors {
		s.Errors = append(s.Errors, ScanErrorEntry{Kind: err.Kind(), Path: err.FilePath(), Message: err.Error()})
	}
}

func (s *ScanStats) addResult(result filescan.OperationResult) {
	switch result {
	case filescan.Added:
		s.Additions++
	case filescan.Updated:
		s.Updates++
	case filescan.Removed:
		s.Deletions++
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *ScanStats) Clone() ScanStats {
	c := *s
	c.Errors = append([]ScanErrorEntry(nil), s.Errors...)
	c.Duplicates = make([]DuplicateGroup, len(s.Duplicates))
	for i, group := range s.Duplicates {
		group.TrackIDs = append([]int64(nil), group.TrackIDs...)
		group.Paths = append([]string(nil), group.Paths...)
		c.Duplicates[i] = group
	}
	return c
}

// ScanStepStats describes the progress of the running step.
type ScanStepStats struct {
	StartTime      time.Time `json:"start_time"`
	StepCount      int       `json:"step_count"`
	StepIndex      int       `json:"step_index"`
	CurrentStep    ScanStep  `json:"current_step"`
	TotalElems     int       `json:"total_elems"`
	ProcessedElems int       `json:"processed_elems"`
}

// Progress returns the completion of the step in percent.
func (s ScanStepStats) Progress() int {
	if s.TotalElems <= 0 {
		return 0
	}
	if s.ProcessedElems >= s.TotalElems {
		return 100
	}
	return s.ProcessedElems * 100 / s.TotalElems
}

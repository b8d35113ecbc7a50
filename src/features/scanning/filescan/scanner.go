package filescan

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/contre95/soulscan/src/music"
)

// OperationResult is the outcome of committing a scan operation.
type OperationResult int

const (
	Skipped OperationResult = iota
	Added
	Updated
	Removed
)

func (r OperationResult) String() string {
	switch r {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "skipped"
	}
}

// FileScanner is a plugin handling one family of files.
type FileScanner interface {
	Name() string
	// SupportedFiles returns exact file names handled by the scanner. They
	// take precedence over extensions.
	SupportedFiles() []string
	SupportedExtensions() []string
	// NeedsScan reports whether file changed since it was last committed.
	// It must be cheap and free of side effects.
	NeedsScan(file FileToScan) bool
	CreateScanOperation(file FileToScan) FileScanOperation
}

// KnownFilesLoader is implemented by scanners that cache the stored state of
// their files for NeedsScan.
type KnownFilesLoader interface {
	LoadKnownFiles(tx music.ReadTx, rootPath string) error
}

// FileKindScanner is implemented by scanners storing a single kind of
// file backed record.
type FileKindScanner interface {
	FileKind() music.FileKind
}

// Handles reports whether scanner stores records of the given kind.
func Handles(scanner FileScanner, kind music.FileKind) bool {
	k, ok := scanner.(FileKindScanner)
	return ok && k.FileKind() == kind
}

// FileScanOperation scans one file in two phases. Scan parses the file and
// never touches the store, so it can run on any goroutine. ProcessResult
// commits the parsed result inside a write transaction and runs on the
// coordinating goroutine only. Reject records why the committed result was
// thrown away.
type FileScanOperation interface {
	File() FileToScan
	ScannerName() string
	Scan(ctx context.Context)
	ProcessResult(tx music.WriteTx) (OperationResult, error)
	Reject(err error)
	Errors() []ScanError
}

type operationBase struct {
	file    FileToScan
	scanner string
	errors  []ScanError
}

func (o *operationBase) File() FileToScan    { return o.file }
func (o *operationBase) ScannerName() string { return o.scanner }
func (o *operationBase) Errors() []ScanError { return o.errors }

func (o *operationBase) Reject(err error) {
	o.addError(&InvalidRecordError{Path: o.file.Path, Reason: err.Error()})
}

func (o *operationBase) addError(err ScanError) {
	o.errors = append(o.errors, err)
}

// Registry selects the scanner of a file by name, then by extension.
type Registry struct {
	scanners    []FileScanner
	byFile      map[string]FileScanner
	byExtension map[string]FileScanner
}

// NewRegistry creates a registry holding the given scanners.
func NewRegistry(scanners ...FileScanner) *Registry {
	r := &Registry{
		byFile:      make(map[string]FileScanner),
		byExtension: make(map[string]FileScanner),
	}
	for _, scanner := range scanners {
		r.Add(scanner)
	}
	return r
}

// Add registers a scanner. Later registrations win on conflicts.
func (r *Registry) Add(scanner FileScanner) {
	r.scanners = append(r.scanners, scanner)
	for _, name := range scanner.SupportedFiles() {
		r.byFile[strings.ToLower(name)] = scanner
	}
	for _, ext := range scanner.SupportedExtensions() {
		r.byExtension[normalizeExtension(ext)] = scanner
	}
}

// Select returns the scanner handling path, or nil.
func (r *Registry) Select(path string) FileScanner {
	base := strings.ToLower(filepath.Base(path))
	if scanner, ok := r.byFile[base]; ok {
		return scanner
	}
	return r.byExtension[strings.ToLower(filepath.Ext(base))]
}

// Scanners returns the registered scanners in registration order.
func (r *Registry) Scanners() []FileScanner {
	return r.scanners
}

// SupportedExtensions returns every extension handled by the registry, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func normalizeExtensions(exts []string) []string {
	normalized := make([]string, 0, len(exts))
	for _, ext := range exts {
		if ext = normalizeExtension(ext); ext != "" {
			normalized = append(normalized, ext)
		}
	}
	return normalized
}

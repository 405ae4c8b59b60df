package snapshot

// FileResult is the outcome of classifying a single discovered candidate.
// It is a closed sum: the only implementations are Included and Omitted,
// and callers are expected to type-switch over them. Exactly one FileResult
// is produced per candidate.
type FileResult interface {
	// FilePath returns the absolute path of the candidate.
	FilePath() string

	fileResult()
}

// Included carries the extracted text of a candidate that passed every gate.
type Included struct {
	Path    string
	Content string
	Size    int64 // bytes actually read, not the stat size
}

// Omitted records a candidate that was rejected, with a human-readable reason.
type Omitted struct {
	Path   string
	Reason string
	Size   int64 // 0 when the size could not be determined
}

func (r Included) FilePath() string { return r.Path }
func (r Omitted) FilePath() string  { return r.Path }

func (Included) fileResult() {}
func (Omitted) fileResult()  {}

// ExtStat aggregates included files sharing one extension.
type ExtStat struct {
	Files int
	Bytes int64
}

// FileSize pairs a relative path with its included byte size.
type FileSize struct {
	Path string
	Size int64
}

// OmittedEntry is one row of the omission report.
type OmittedEntry struct {
	Path   string
	Reason string
	Size   int64
}

// Stats summarizes a completed snapshot run.
type Stats struct {
	OutputPath    string // empty for dry runs
	FilesIncluded int
	FilesOmitted  int
	TotalBytes    int64
	TotalLines    int
	ByExtension   map[string]ExtStat
	TopOffenders  []FileSize
	AccessErrors  []string
}

// Options controls a single snapshot run. Root must already be
// canonicalized by the caller.
type Options struct {
	Root   string
	Output string // explicit destination; empty selects the timestamped default
	DryRun bool
	Force  bool
}

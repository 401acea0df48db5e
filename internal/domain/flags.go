package domain

import (
	"strconv"
	"strings"
)

// ErrorFlags is the set of pipeline stages that failed for one job.
type ErrorFlags uint8

const (
	ArchiveStageFailed ErrorFlags = 1 << iota
	ThumbnailStageFailed
	MergeStageFailed
	ExtractStageFailed
)

var flagNames = []struct {
	flag ErrorFlags
	name string
}{
	{ArchiveStageFailed, "archive"},
	{ThumbnailStageFailed, "thumbnail"},
	{MergeStageFailed, "merge"},
	{ExtractStageFailed, "extract"},
}

// Accumulate returns f with stage added. Stages never short-circuit, so a
// job keeps collecting flags as later stages run.
func (f ErrorFlags) Accumulate(stage ErrorFlags) ErrorFlags {
	return f | stage
}

// Has reports whether every bit of stage is set.
func (f ErrorFlags) Has(stage ErrorFlags) bool {
	return stage != 0 && f&stage == stage
}

// String renders the bit pattern, e.g. "101" for archive+merge.
func (f ErrorFlags) String() string {
	return strconv.FormatUint(uint64(f), 2)
}

// Names lists the failed stages in pipeline order.
func (f ErrorFlags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

// Describe joins Names with commas, or "none".
func (f ErrorFlags) Describe() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), ",")
}

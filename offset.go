package svn2svn

import (
	"github.com/tonyduckles/svn2svn/svn"
)

// Offset bounds what is replayed: the subtree at SourceBase in the source
// repository maps onto the subtree at TargetBase in the target. Only
// changes under SourceBase are in scope; copy-from references pointing
// outside it degrade to plain content adds.
type Offset struct {
	// SourceBase is repository-absolute, e.g. "/trunk"; "" replays the
	// whole repository.
	SourceBase string
	// TargetBase is the corresponding subtree in the target repository.
	TargetBase string
}

// InScope reports whether a repository-absolute source path is under the
// source base, and its offset relative to it.
func (o Offset) InScope(path string) (string, bool) {
	return svn.PathOffset(path, o.SourceBase)
}

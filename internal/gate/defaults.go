package gate

import (
	_ "embed"
)

// DefaultConstitution is the embedded baseline rule set. It must compile;
// a binary whose embedded constitution fails analysis is corrupt.
//
//go:embed defaults/constitution.mg
var DefaultConstitution string

package model

type PatchOp string

const (
	PatchSet    PatchOp = "set"
	PatchRemove PatchOp = "remove"
	PatchAdd    PatchOp = "add"
	PatchIncr   PatchOp = "incr"
)

// Patch is a field-level change relative to some document root. Path uses dotted notation.
type Patch struct {
	Op    PatchOp `json:"op"`
	Path  string  `json:"path"`
	Value any     `json:"value,omitempty"`
}

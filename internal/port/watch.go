package port

// ChangeType classifies a filesystem change after debouncing.
type ChangeType int

const (
	ChangeCreate ChangeType = iota
	ChangeModify
	ChangeDelete
)

func (t ChangeType) String() string {
	switch t {
	case ChangeCreate:
		return "create"
	case ChangeModify:
		return "modify"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeEvent is one debounced change to a root-relative path.
type ChangeEvent struct {
	RelPath string
	Type    ChangeType
}

package observable

type Action uint8

const (
	ActionAdd Action = iota + 1
	ActionRemove
	ActionReplace
	ActionReset
	ActionCountChanged
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionReplace:
		return "replace"
	case ActionReset:
		return "reset"
	case ActionCountChanged:
		return "count_changed"
	}
	return "unknown"
}

// MapChange describes one change of a Map. Key, OldValue and NewValue are set
// for Add and Remove only; Count is the number of entries after the change.
type MapChange[K comparable, V any] struct {
	Action   Action
	Key      K
	OldValue V
	NewValue V
	Count    int
}

// ListChange describes one change of a List. Index is the position of the
// affected item for Add, Remove and Replace, and -1 otherwise.
type ListChange[T any] struct {
	Action  Action
	Index   int
	OldItem T
	NewItem T
	Count   int
}

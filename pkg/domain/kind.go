package domain

import "fmt"

// Kind names one of the mirrored collections.
type Kind int

const (
	KindWorkflow Kind = iota
	KindInstance
	KindGlobal
)

// Kinds lists every mirrored collection in refresh order.
var Kinds = []Kind{KindWorkflow, KindInstance, KindGlobal}

func (k Kind) String() string {
	switch k {
	case KindWorkflow:
		return "workflow"
	case KindInstance:
		return "instance"
	case KindGlobal:
		return "global"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the singular or plural collection name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "workflow", "workflows":
		return KindWorkflow, nil
	case "instance", "instances":
		return KindInstance, nil
	case "global", "globals", "global_variables":
		return KindGlobal, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

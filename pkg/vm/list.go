package vm

import "github.com/kristofer/ember/pkg/value"

// listIndex validates and truncates idx toward zero per spec §4.5,
// returning a runtime error for a non-numeric or out-of-range index.
func listIndex(list *value.ObjListVal, idxVal value.Value) (int, error) {
	if !idxVal.IsNumber() {
		return 0, &RuntimeError{Message: "List index is not a number."}
	}
	idx := int(idxVal.AsNumber())
	if idx < 0 || idx >= len(list.Items) {
		return 0, &RuntimeError{Message: "List index out of range"}
	}
	return idx, nil
}

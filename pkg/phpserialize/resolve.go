package phpserialize

import "fmt"

// Reference resolution is a second pass: the parser stores bare slot
// indices, and slot order is defined as entry order during parsing, which
// for a successfully parsed tree is exactly pre-order traversal (keys
// before values, containers before their children). Rebuilding the table
// from the tree therefore reproduces the producer's numbering without the
// parser having to retain anything.

// Resolve replaces every Reference in the tree with the value its slot
// points at, in place, and returns the root. Containers become shared
// after resolution, so the result may be a cyclic graph; traversals of it
// must guard against revisits (ToGo does).
//
// An index outside the slot table fails with ErrInvalidReference.
func Resolve(root Value) (Value, error) {
	table := collectSlots(root)
	if root.IsReference() {
		// A bare top-level reference has nothing to point at.
		return Value{}, fmt.Errorf("%w: index %d with no preceding value",
			ErrInvalidReference, root.AsReference().Index)
	}
	if err := resolveIn(root, table, make(map[any]bool)); err != nil {
		return Value{}, err
	}
	return root, nil
}

// collectSlots rebuilds the reference table by pre-order walk: one slot
// per reference-eligible value, in entry order, 1-indexed (slot k lives at
// table[k-1]). References themselves do not occupy slots.
func collectSlots(root Value) []Value {
	var table []Value
	seen := make(map[any]bool) // guards a second Resolve over an already cyclic tree
	var walk func(v Value)
	walk = func(v Value) {
		if v.IsReference() {
			return
		}
		table = append(table, v)
		switch v.Type() {
		case TypeArray:
			a := v.AsArray()
			if seen[a] {
				return
			}
			seen[a] = true
			for _, e := range a.Entries {
				walk(e.Key)
				walk(e.Value)
			}
		case TypeObject:
			o := v.AsObject()
			if seen[o] {
				return
			}
			seen[o] = true
			for _, e := range o.Properties {
				walk(e.Key)
				walk(e.Value)
			}
		}
	}
	walk(root)
	return table
}

// resolveIn rewrites references inside v's containers. seen is keyed by
// container payload pointer so aliased (already shared) containers are
// visited once.
func resolveIn(v Value, table []Value, seen map[any]bool) error {
	var entries []Entry
	switch v.Type() {
	case TypeArray:
		a := v.AsArray()
		if seen[a] {
			return nil
		}
		seen[a] = true
		entries = a.Entries
	case TypeObject:
		o := v.AsObject()
		if seen[o] {
			return nil
		}
		seen[o] = true
		entries = o.Properties
	default:
		return nil
	}

	for i := range entries {
		for _, slot := range []*Value{&entries[i].Key, &entries[i].Value} {
			if slot.IsReference() {
				ref := slot.AsReference()
				if ref.Index < 1 || ref.Index > len(table) {
					return fmt.Errorf("%w: index %d, %d slots assigned",
						ErrInvalidReference, ref.Index, len(table))
				}
				*slot = table[ref.Index-1]
			}
			if err := resolveIn(*slot, table, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

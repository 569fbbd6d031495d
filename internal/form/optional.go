package form

// Optional is a string input that may hold no value at all, which is
// distinct from holding the empty string.
type Optional struct {
	Value string
	Set   bool
}

// Some returns an Optional holding s.
func Some(s string) Optional { return Optional{Value: s, Set: true} }

// None returns the "no value" Optional.
func None() Optional { return Optional{} }

// FromPtr converts a nullable string.
func FromPtr(p *string) Optional {
	if p == nil {
		return None()
	}
	return Some(*p)
}

// Ptr converts back to a nullable string.
func (o Optional) Ptr() *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

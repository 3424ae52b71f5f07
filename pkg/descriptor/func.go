package descriptor

// EmitFunc generates code for one node. req.Params is already bound.
type EmitFunc func(req EmitRequest) (Fragment, error)

// Func is a descriptor implemented by a Go function, for node types whose
// code depends on inputs or data in ways a template cannot express.
type Func struct {
	base
	fn EmitFunc
}

// NewFunc returns a Func descriptor.
func NewFunc(spec Spec, fn EmitFunc) *Func {
	return &Func{base: base{spec: spec}, fn: fn}
}

// Emit validates the node's data and calls the function.
func (f *Func) Emit(req EmitRequest) (Fragment, error) {
	req, err := f.bind(req)
	if err != nil {
		return Fragment{}, err
	}
	return f.fn(req)
}

// PrimaryRef returns the first value-carrying input's ref.
func PrimaryRef(in Inputs) (string, error) { return primaryRef(in) }

// ConnRef returns the first connection input's ref.
func ConnRef(in Inputs) (string, error) { return connRef(in) }

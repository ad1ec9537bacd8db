package domain

// Variable is a typed value. Typename names the server-side variable class
// (e.g. "String", "Integer"); Value is its serialised form.
type Variable struct {
	Typename string `json:"typename"`
	Value    string `json:"value"`
}

// GlobalVariable is a Variable stored at server scope.
// Its identity is the name it is stored under, not a field of its own.
type GlobalVariable = Variable

// Variables maps variable names to values.
type Variables map[string]Variable

// Clone returns an independent copy. A nil map stays nil.
func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

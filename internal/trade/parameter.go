package trade

import "encoding/json"

// Well-known trade-detail parameter names. Applications are free to use
// others; these are the ones the core itself recognizes.
const (
	ParamAcceptsPartialTake = "AcceptsPartialTake"
	ParamTrustedArbitration = "TrustedArbitration"
	ParamTrustedEscrow      = "TrustedEscrow"
	ParamTradeTimesOut      = "TradeTimesOut"
)

// Parameter is a trade-detail flag, optionally carrying a sub-value
// (e.g. Name="TradeTimesOut", Value="FourDays").
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// NewParameter builds a bare parameter with no sub-value.
func NewParameter(name string) Parameter {
	return Parameter{Name: name}
}

// NewValuedParameter builds a parameter carrying a sub-value.
func NewValuedParameter(name, value string) Parameter {
	return Parameter{Name: name, Value: value}
}

// String renders the parameter as its most specific tag token, e.g.
// "TrustedEscrow" or "TradeTimesOut-FourDays".
func (p Parameter) String() string {
	if p.Value == "" {
		return p.Name
	}
	return p.Name + "-" + p.Value
}

// ParameterSet is a set of Parameter, keyed by their String() form.
type ParameterSet map[string]Parameter

// NewParameterSet builds a set from the given parameters.
func NewParameterSet(params ...Parameter) ParameterSet {
	set := make(ParameterSet, len(params))
	for _, p := range params {
		set[p.String()] = p
	}
	return set
}

// Add inserts a parameter into the set.
func (s ParameterSet) Add(p Parameter) {
	s[p.String()] = p
}

// Contains reports whether a parameter with the given name (any value) is present.
func (s ParameterSet) Contains(name string) bool {
	for _, p := range s {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Slice returns the set's members in no particular order.
func (s ParameterSet) Slice() []Parameter {
	out := make([]Parameter, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	return out
}

// MarshalJSON renders the set as an array of {name,value} objects.
func (s ParameterSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON rebuilds the set from an array of {name,value} objects.
func (s *ParameterSet) UnmarshalJSON(data []byte) error {
	var params []Parameter
	if err := json.Unmarshal(data, &params); err != nil {
		return err
	}
	*s = NewParameterSet(params...)
	return nil
}

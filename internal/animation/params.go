package animation

import "encoding/json"

// MarshalParams serializes every registered parameter of anim to a JSON
// object keyed by parameter name, the params_json persisted by the
// preset store.
func MarshalParams(anim Animation) (json.RawMessage, error) {
	out := make(map[string]*ParamCell)
	for _, c := range anim.Parameters() {
		out[c.Name] = c
	}
	return json.Marshal(out)
}

// UnmarshalParams applies a params_json document onto anim's registered
// cells by name. Unknown names in the document are ignored (a preset
// saved under a newer animation version); cells the document omits keep
// their current value.
func UnmarshalParams(anim Animation, params json.RawMessage) error {
	var raw map[string]json.RawMessage
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return err
	}
	for _, c := range anim.Parameters() {
		v, ok := raw[c.Name]
		if !ok {
			continue
		}
		if err := c.UnmarshalJSON(v); err != nil {
			// IncompatibleType: dropped silently, the next
			// cell is still applied.
			continue
		}
	}
	return nil
}

// ResetParams restores every registered parameter to its registered
// default (set_animation fallback path).
func ResetParams(anim Animation) {
	for _, c := range anim.Parameters() {
		c.Reset()
	}
}

// SetParamByName applies a single JSON value to the named parameter of
// anim, used by the command bus's SyncParam handler.
// Returns ErrIncompatibleType (dropped silently by the caller) if name
// is unknown or the value doesn't match the parameter's kind.
func SetParamByName(anim Animation, name string, value json.RawMessage) error {
	for _, c := range anim.Parameters() {
		if c.Name == name {
			return c.UnmarshalJSON(value)
		}
	}
	return ErrIncompatibleType
}

// CurrentParams returns the live animation's parameters rendered to a
// JSON-friendly structure for the control plane's current_params() call.
func CurrentParams(anim Animation) ([]ParamDescriptor, error) {
	out := make([]ParamDescriptor, 0, len(anim.Parameters()))
	for _, c := range anim.Parameters() {
		val, err := c.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out = append(out, ParamDescriptor{
			Name:        c.Name,
			Kind:        c.Kind,
			Min:         c.Min,
			Max:         c.Max,
			Step:        c.Step,
			Description: c.Description,
			Value:       val,
		})
	}
	return out, nil
}

// ParamDescriptor is the control-plane-facing view of one parameter:
// metadata plus its current value.
type ParamDescriptor struct {
	Name        string          `json:"name"`
	Kind        Kind            `json:"kind"`
	Min         float64         `json:"min"`
	Max         float64         `json:"max"`
	Step        float64         `json:"step"`
	Description string          `json:"description"`
	Value       json.RawMessage `json:"value"`
}

package llm

import "fmt"

const (
	// DefaultTemperature is applied when Options.Temperature is nil.
	DefaultTemperature = 0.7

	// DefaultMaxTokens is applied when Options.MaxTokens is nil.
	DefaultMaxTokens = 4096
)

// Options are the optional generation parameters of a completion call.
// A nil field means "use the default".
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// OptionsError reports an out of range generation parameter.
type OptionsError struct {
	Field string
	Value any
}

func (e *OptionsError) Error() string {
	switch e.Field {
	case "temperature":
		return fmt.Sprintf("invalid temperature %v: must be within [0, 1]", e.Value)
	case "max_tokens":
		return fmt.Sprintf("invalid max_tokens %v: must be positive", e.Value)
	default:
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Value)
	}
}

// Validate checks the optional parameters. A nil *Options is valid.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	if o.Temperature != nil && (*o.Temperature < 0 || *o.Temperature > 1) {
		return &OptionsError{Field: "temperature", Value: *o.Temperature}
	}
	if o.MaxTokens != nil && *o.MaxTokens <= 0 {
		return &OptionsError{Field: "max_tokens", Value: *o.MaxTokens}
	}
	return nil
}

// Resolved returns the effective temperature and token limit with defaults applied.
func (o *Options) Resolved() (float64, int) {
	temperature, maxTokens := DefaultTemperature, DefaultMaxTokens
	if o == nil {
		return temperature, maxTokens
	}
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		maxTokens = *o.MaxTokens
	}
	return temperature, maxTokens
}

// WithTemperature returns a copy of o with the temperature set.
func (o *Options) WithTemperature(t float64) *Options {
	out := o.clone()
	out.Temperature = &t
	return out
}

// WithMaxTokens returns a copy of o with the token limit set.
func (o *Options) WithMaxTokens(n int) *Options {
	out := o.clone()
	out.MaxTokens = &n
	return out
}

func (o *Options) clone() *Options {
	if o == nil {
		return &Options{}
	}
	cp := *o
	return &cp
}

package filters

import "fmt"

// ConfigError reports invalid filtering configuration: a malformed
// integration distance table, a tectonic region type with no entry and no
// default, an incomplete site collection or an unknown prefilter.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedParameterError reports a parameter value the filters cannot
// compute, such as an unknown distance metric.
type UnsupportedParameterError struct {
	Param  string
	Value  string
	Detail string
}

func (e *UnsupportedParameterError) Error() string {
	msg := fmt.Sprintf("unsupported %s %q", e.Param, e.Value)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// SourceError annotates a failure raised while filtering a source with the
// source id. The wrapped error keeps its type for errors.As.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("an error occurred with source id=%s: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

package graph

import (
	"fmt"
	"log/slog"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// SeverityWarning marks a recoverable condition: the operation
	// continued with degraded state (dangling reference, missing
	// element, detached link).
	SeverityWarning Severity = iota
	// SeverityError marks a condition that lost data for one item but
	// did not abort the surrounding operation.
	SeverityError
)

// String returns the severity name.
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diag is one recoverable condition recorded during an operation.
type Diag struct {
	Severity Severity
	// Property is the full name of the property involved, when known.
	Property string
	Message  string
}

// Report collects recoverable diagnostics for one logical operation.
// Hard errors propagate as error returns; everything recoverable funnels
// through a Report so one bad reference never blocks the rest of a load.
type Report struct {
	logger *slog.Logger
	Diags  []Diag
}

// NewReport returns a Report logging through the session's logger.
func (s *Session) NewReport() *Report {
	return &Report{logger: s.logger}
}

// Warnf records a warning diagnostic for prop (which may be nil).
func (r *Report) Warnf(prop Property, format string, args ...any) {
	r.add(SeverityWarning, prop, fmt.Sprintf(format, args...))
}

// Errorf records an error diagnostic for prop (which may be nil).
func (r *Report) Errorf(prop Property, format string, args ...any) {
	r.add(SeverityError, prop, fmt.Sprintf(format, args...))
}

func (r *Report) add(sev Severity, prop Property, msg string) {
	if r == nil {
		return
	}
	name := ""
	if prop != nil {
		name = propertyName(prop)
	}
	r.Diags = append(r.Diags, Diag{Severity: sev, Property: name, Message: msg})
	if r.logger != nil {
		if sev == SeverityError {
			r.logger.Error(msg, "property", name)
		} else {
			r.logger.Warn(msg, "property", name)
		}
	}
}

// HasWarnings reports whether any diagnostics were recorded.
func (r *Report) HasWarnings() bool {
	return r != nil && len(r.Diags) > 0
}

// propertyName returns a diagnostic name for prop, walking up to the
// aggregating parent when the property itself is an unnamed element.
func propertyName(prop Property) string {
	if prop == nil {
		return ""
	}
	if prop.Owner() == nil || prop.Name() == "" {
		if x, ok := prop.(*XRef); ok && x.parent != nil {
			return propertyName(x.parent)
		}
	}
	if owner := prop.Owner(); owner != nil {
		return owner.FullName() + "." + prop.Name()
	}
	return prop.Name()
}

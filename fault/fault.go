// Package fault defines the error taxonomy shared by the guidance core.
// Every user-visible failure carries a kind, a message, and a directive
// for the agent explaining how to present the failure.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	// KindValidation indicates input that violates a declared constraint.
	KindValidation Kind = "validation"
	// KindNotFound indicates a named category, collection, or template is absent.
	KindNotFound Kind = "not_found"
	// KindTemplateRender indicates a template parse or render fault.
	KindTemplateRender Kind = "template_render"
	// KindFileRead indicates an IO or decode failure on a template, partial, or config.
	KindFileRead Kind = "file_read"
	// KindSecurity indicates a path escaping the document-root or targeting a sensitive path.
	KindSecurity Kind = "security"
	// KindNoProject indicates a required current project is absent.
	KindNoProject Kind = "no_project"
	// KindSave indicates a configuration writeback failure.
	KindSave Kind = "save"
)

// FieldError describes a single invalid field within a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified failure. The Instruction is directive to the agent,
// not to the user.
type Error struct {
	Kind        Kind
	Message     string
	Fields      []FieldError
	Instruction string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, "; "))
}

// Payload returns the response-payload representation of the failure.
func (e *Error) Payload() map[string]any {
	p := map[string]any{
		"error":       e.Message,
		"error_type":  string(e.Kind),
		"instruction": e.Instruction,
	}
	if len(e.Fields) > 0 {
		fields := make([]map[string]any, 0, len(e.Fields))
		for _, f := range e.Fields {
			fields = append(fields, map[string]any{"field": f.Field, "message": f.Message})
		}
		p["fields"] = fields
	}
	return p
}

const (
	displayInstruction   = "Display this error as-is to the user so that THEY can correct it."
	noRemedyInstruction  = "Return this error to the user without attempting remediation."
	securityInstruction  = "Refuse the operation and report the error to the user verbatim."
	retryableInstruction = "Report the error to the user; the operation may be retried after the cause is fixed."
)

// Validation constructs a validation failure with optional field details.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields, Instruction: noRemedyInstruction}
}

// NotFound constructs a not_found failure for a named resource.
func NotFound(what, name string) *Error {
	return &Error{
		Kind:        KindNotFound,
		Message:     fmt.Sprintf("%s %q not found", what, name),
		Instruction: displayInstruction,
	}
}

// TemplateRender wraps a template parse or render fault.
func TemplateRender(name string, err error) *Error {
	return &Error{
		Kind:        KindTemplateRender,
		Message:     fmt.Sprintf("render %q: %v", name, err),
		Instruction: displayInstruction,
	}
}

// FileRead wraps an IO or decode failure.
func FileRead(path string, err error) *Error {
	return &Error{
		Kind:        KindFileRead,
		Message:     fmt.Sprintf("read %q: %v", path, err),
		Instruction: retryableInstruction,
	}
}

// Security constructs a security failure. Security failures are fatal to the
// operation and must never be downgraded to not_found.
func Security(message string) *Error {
	return &Error{Kind: KindSecurity, Message: message, Instruction: securityInstruction}
}

// NoProject constructs a failure for operations requiring a current project.
func NoProject() *Error {
	return &Error{
		Kind:        KindNoProject,
		Message:     "no current project is set",
		Instruction: displayInstruction,
	}
}

// Save wraps a configuration writeback failure.
func Save(path string, err error) *Error {
	return &Error{
		Kind:        KindSave,
		Message:     fmt.Sprintf("save %q: %v", path, err),
		Instruction: retryableInstruction,
	}
}

// KindOf returns the kind of err when it is (or wraps) a *Error,
// or the empty Kind otherwise.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// AsPayload converts any error to the response-payload convention.
// Errors that are not *Error are reported with the generic "internal" type.
func AsPayload(err error) map[string]any {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Payload()
	}
	return map[string]any{
		"error":       err.Error(),
		"error_type":  "internal",
		"instruction": displayInstruction,
	}
}

package pumped

import (
	"fmt"
	"time"
)

// ErrorCategory groups related error codes for coarse-grained handling.
type ErrorCategory string

const (
	CategoryFactory    ErrorCategory = "factory"
	CategoryDependency ErrorCategory = "dependency"
	CategoryScope      ErrorCategory = "scope"
	CategoryValidation ErrorCategory = "validation"
	CategoryFlow       ErrorCategory = "flow"
	CategorySystem     ErrorCategory = "system"
)

// ErrorCode identifies the specific failure within a category.
type ErrorCode string

const (
	FactoryExecutionFailed ErrorCode = "FACTORY_EXECUTION_FAILED"
	FactoryThrewError      ErrorCode = "FACTORY_THREW_ERROR"
	FactoryReturnedInvalid ErrorCode = "FACTORY_RETURNED_INVALID"

	DependencyNotFound ErrorCode = "DEPENDENCY_NOT_FOUND"
	CircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"

	ScopeDisposed         ErrorCode = "SCOPE_DISPOSED"
	ReactiveExecutorInPod ErrorCode = "REACTIVE_EXECUTOR_IN_POD"

	SchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"

	FlowExecutionFailed ErrorCode = "FLOW_EXECUTION_FAILED"
	JournalKeyDuplicate ErrorCode = "JOURNAL_KEY_DUPLICATE"
)

// ErrorContext carries diagnostic information attached to every Error.
type ErrorContext struct {
	ExecutorName    string
	Stage           string
	DependencyChain []string
	ScopeID         string
	Timestamp       time.Time
	Extra           map[string]any
}

// Error is the single structured error type surfaced by the core. Every
// rejected accessor and every failed flow carries one of these, directly or
// wrapped via Unwrap.
type Error struct {
	Code     ErrorCode
	Category ErrorCategory
	Context  ErrorContext
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s) at %s: %v", e.Code, e.Category, e.Context.Stage, e.Cause)
	}
	return fmt.Sprintf("%s (%s) at %s", e.Code, e.Category, e.Context.Stage)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, category ErrorCategory, stage string, cause error) *Error {
	return &Error{
		Code:     code,
		Category: category,
		Cause:    cause,
		Context: ErrorContext{
			Stage:     stage,
			Timestamp: time.Now(),
		},
	}
}

func (e *Error) withExecutor(name string) *Error {
	e.Context.ExecutorName = name
	return e
}

func (e *Error) withChain(chain []string) *Error {
	e.Context.DependencyChain = chain
	return e
}

func (e *Error) withScope(id string) *Error {
	e.Context.ScopeID = id
	return e
}

func (e *Error) withExtra(key string, val any) *Error {
	if e.Context.Extra == nil {
		e.Context.Extra = make(map[string]any)
	}
	e.Context.Extra[key] = val
	return e
}

// CleanupError describes a cleanup callback that returned an error. It is
// reported to extensions via OnCleanupError and is never returned to the
// caller of Release/Dispose: cleanup failures are informational only.
type CleanupError struct {
	ExecutorName string
	Err          error
	Context      string // "reactive", "release" or "dispose"
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup error during %s for %s: %v", e.Context, e.ExecutorName, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

func factoryFailed(name string, cause error) *Error {
	return newError(FactoryExecutionFailed, CategoryFactory, "resolve", cause).withExecutor(name)
}

func factoryThrew(name string, recovered any) *Error {
	return newError(FactoryThrewError, CategoryFactory, "resolve", fmt.Errorf("%v", recovered)).withExecutor(name)
}

func dependencyNotFound(name string) *Error {
	return newError(DependencyNotFound, CategoryDependency, "resolve", nil).withExecutor(name)
}

func circularDependency(chain []string) *Error {
	return newError(CircularDependency, CategoryDependency, "resolve", nil).withChain(chain)
}

func scopeDisposed(stage string) *Error {
	return newError(ScopeDisposed, CategoryScope, stage, nil)
}

func reactiveExecutorInPod(name string) *Error {
	return newError(ReactiveExecutorInPod, CategoryScope, "pod-resolve", nil).withExecutor(name)
}

func schemaValidationFailed(stage string, cause error) *Error {
	return newError(SchemaValidationFailed, CategoryValidation, stage, cause)
}

func flowExecutionFailed(flowName string, cause error) *Error {
	return newError(FlowExecutionFailed, CategoryFlow, "execute", cause).withExtra("flow", flowName)
}

func journalKeyDuplicate(key string) *Error {
	return newError(JournalKeyDuplicate, CategoryFlow, "journal", nil).withExtra("key", key)
}

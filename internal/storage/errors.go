/*
Copyright 2025 Stoolap Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package storage

import (
	"errors"
	"fmt"
)

// ConstraintError reports a violated table constraint. The message carries
// the human-readable context (table, column, key text).
type ConstraintError struct {
	msg string
}

func (e *ConstraintError) Error() string { return e.msg }

// NewConstraintError wraps a preformatted violation message
func NewConstraintError(format string, args ...interface{}) *ConstraintError {
	return &ConstraintError{msg: fmt.Sprintf(format, args...)}
}

// NewNotNullConstraintError reports a NULL in a NOT NULL column
func NewNotNullConstraintError(table, column string) *ConstraintError {
	return &ConstraintError{msg: fmt.Sprintf("NOT NULL constraint failed: %s.%s", table, column)}
}

// NewCheckConstraintError reports a CHECK expression yielding zero
func NewCheckConstraintError(table string) *ConstraintError {
	return &ConstraintError{msg: fmt.Sprintf("CHECK constraint failed: %s", table)}
}

// NewCheckConstraintEvalError reports a CHECK expression that failed to evaluate
func NewCheckConstraintEvalError(table string, cause error) *ConstraintError {
	return &ConstraintError{msg: fmt.Sprintf("CHECK constraint failed: %s (Error: %v)", table, cause)}
}

// NewUniqueConstraintError reports a duplicate key in a unique index
func NewUniqueConstraintError(index, keyName string) *ConstraintError {
	return &ConstraintError{msg: fmt.Sprintf("Duplicate key %s violates unique constraint %q", keyName, index)}
}

// NewGeneratedColumnError reports a generated-column expression failure
func NewGeneratedColumnError(column string, columnType DataType, exprText string, cause error) *ConstraintError {
	return &ConstraintError{msg: fmt.Sprintf(
		"Incorrect value for generated column \"%s %s AS (%s)\" : %v", column, columnType, exprText, cause)}
}

// TransactionConflictError reports a write racing a schema change
type TransactionConflictError struct {
	msg string
}

func (e *TransactionConflictError) Error() string { return e.msg }

// NewTransactionConflictError wraps a transaction conflict message
func NewTransactionConflictError(format string, args ...interface{}) *TransactionConflictError {
	return &TransactionConflictError{msg: fmt.Sprintf("Transaction conflict: "+format, args...)}
}

// CatalogError reports a schema change forbidden by catalog state
type CatalogError struct {
	msg string
}

func (e *CatalogError) Error() string { return e.msg }

// NewCatalogError wraps a catalog violation message
func NewCatalogError(format string, args ...interface{}) *CatalogError {
	return &CatalogError{msg: fmt.Sprintf(format, args...)}
}

// NotImplementedError reports an unsupported operation at a given site
type NotImplementedError struct {
	msg string
}

func (e *NotImplementedError) Error() string { return e.msg }

// NewNotImplementedError wraps an unsupported-operation message
func NewNotImplementedError(format string, args ...interface{}) *NotImplementedError {
	return &NotImplementedError{msg: fmt.Sprintf(format, args...)}
}

// InternalError reports a precondition failure that indicates a bug
type InternalError struct {
	msg string
}

func (e *InternalError) Error() string { return e.msg }

// NewInternalError wraps an internal invariant failure
func NewInternalError(format string, args ...interface{}) *InternalError {
	return &InternalError{msg: fmt.Sprintf(format, args...)}
}

// IsConstraintError reports whether err is (or wraps) a constraint violation
func IsConstraintError(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// IsTransactionConflict reports whether err is (or wraps) a transaction conflict
func IsTransactionConflict(err error) bool {
	var te *TransactionConflictError
	return errors.As(err, &te)
}

// IsCatalogError reports whether err is (or wraps) a catalog violation
func IsCatalogError(err error) bool {
	var ce *CatalogError
	return errors.As(err, &ce)
}

// IsInternalError reports whether err is (or wraps) an internal invariant failure
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

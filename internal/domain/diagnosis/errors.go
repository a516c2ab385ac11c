package diagnosis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound matches every NotFoundError. A row owned by another tenant or
// soft-deleted is reported exactly like a missing one.
var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

var (
	ErrUBSNotFound          = &NotFoundError{Message: "UBS não encontrada"}
	ErrIndicatorNotFound    = &NotFoundError{Message: "Indicador não encontrado"}
	ErrProfessionalNotFound = &NotFoundError{Message: "Profissional não encontrado"}
	ErrTerritoryNotFound    = &NotFoundError{Message: "Perfil de território não encontrado"}
	ErrNeedsNotFound        = &NotFoundError{Message: "Registro de necessidades não encontrado"}
	ErrAttachmentNotFound   = &NotFoundError{Message: "Anexo não encontrado"}
)

// Validation codes.
const (
	CodeRequired    = "required"
	CodeRange       = "range"
	CodeDateLogic   = "date_logic"
	CodeInvalid     = "invalid"
	CodeInvalidRefs = "invalid_reference"
	CodeTooLarge    = "too_large"
)

// ValidationError rejects a single field before anything is written.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Message }

func newValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

func requiredField(field string) *ValidationError {
	return newValidationError(field, CodeRequired, fmt.Sprintf("Campo %s é obrigatório", field))
}

// FieldError is one entry of a failed submission.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

const submissionFailedMessage = "Falha na validação para envio do diagnóstico"

// SubmissionValidationError carries the complete, ordered list produced by
// Validate.
type SubmissionValidationError struct {
	Errors []FieldError
}

func (e *SubmissionValidationError) Error() string {
	fields := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		fields[i] = fe.Field
	}
	return fmt.Sprintf("%s: %s", submissionFailedMessage, strings.Join(fields, ", "))
}

// Detail is the user-facing summary sent alongside the error list.
func (e *SubmissionValidationError) Detail() string { return submissionFailedMessage }

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

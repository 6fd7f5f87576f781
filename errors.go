package nutmeg

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMalformedRecord   = errors.New("malformed record")
	ErrTruncatedFile     = errors.New("truncated file")
	ErrTrailingData      = errors.New("trailing data")
	ErrAlreadyExists     = errors.New("already exists")
	ErrLimitExceeded     = errors.New("limit exceeded")

	// Two plots of one file mapped to the same export target.
	ErrTargetCollision = fmt.Errorf("target collision: %w", ErrAlreadyExists)
)

// ParseError locates a grammar violation inside a file.
type ParseError struct {
	Kind error
	Path string

	// Line is 1-based. Zero means the failure is inside a binary payload and
	// only Offset is meaningful.
	Line   int
	Offset int64
	Msg    string
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}

	sb.WriteString(e.Kind.Error())
	if e.Line > 0 {
		fmt.Fprintf(&sb, " at line %d (offset %d)", e.Line, e.Offset)
	} else {
		fmt.Fprintf(&sb, " at offset %d", e.Offset)
	}

	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	return sb.String()
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// FormatError is returned when a file is neither ASCII nor binary Nutmeg.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	msg := ErrUnsupportedFormat.Error()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// ExistsError carries every export target that blocked a conversion.
type ExistsError struct {
	Paths []string

	// Either ErrAlreadyExists or ErrTargetCollision.
	Err error
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(e.Paths, ", "))
}

func (e *ExistsError) Unwrap() error {
	return e.Err
}

// KindOf names the error kind of err for user facing reports.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTargetCollision):
		return "TargetCollision"
	case errors.Is(err, ErrAlreadyExists):
		return "AlreadyExists"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrPermissionDenied):
		return "PermissionDenied"
	case errors.Is(err, ErrUnsupportedFormat):
		return "UnsupportedFormat"
	case errors.Is(err, ErrMalformedRecord):
		return "MalformedRecord"
	case errors.Is(err, ErrTruncatedFile):
		return "TruncatedFile"
	case errors.Is(err, ErrTrailingData):
		return "TrailingData"
	case errors.Is(err, ErrLimitExceeded):
		return "LimitExceeded"
	default:
		return "Error"
	}
}

// fileError maps errors from the os package onto the package error kinds.
func fileError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	default:
		return err
	}
}

// withPath attaches the input path to err, keeping it errors.Is compatible.
func withPath(path string, err error) error {
	var parseErr *ParseError
	if errors.As(err, &parseErr) && parseErr.Path == "" {
		parseErr.Path = path
		return err
	}

	var formatErr *FormatError
	if errors.As(err, &formatErr) && formatErr.Path == "" {
		formatErr.Path = path
		return err
	}

	if strings.Contains(err.Error(), path) {
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}

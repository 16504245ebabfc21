package app

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// SectorRange is a half-open run of sectors [Start, End)
type SectorRange struct {
	Start types.Sector
	End   types.Sector
}

// ParseSectorRange parses optional start and end arguments. A missing start is
// sector zero and a missing end is the highest addressable sector. An end at or
// before the start is an empty range, not an error.
func ParseSectorRange(args []string) (SectorRange, error) {
	r := SectorRange{Start: 0, End: types.MaxSector}
	if len(args) > 2 {
		return r, errors.New("at most a start and an end sector may be given")
	}
	if len(args) > 0 {
		s, err := parseSector(args[0])
		if err != nil {
			return r, fmt.Errorf("invalid start sector: %w", err)
		}
		r.Start = s
	}
	if len(args) > 1 {
		s, err := parseSector(args[1])
		if err != nil {
			return r, fmt.Errorf("invalid end sector: %w", err)
		}
		r.End = s
	}
	return r, nil
}

// Sectors returns the number of sectors in the range
func (r SectorRange) Sectors() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return uint64(r.End) - uint64(r.Start)
}

func (r SectorRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

func parseSector(arg string) (types.Sector, error) {
	v, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, err
	}
	return types.Sector(v), nil
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeOpenFailed   = "OPEN_FAILED"
	ErrCodeSeekProtocol = "SEEK_PROTOCOL"
	ErrCodeWriteFailed  = "WRITE_FAILED"
	ErrCodeConfig       = "CONFIG"
	ErrCodeInternal     = "INTERNAL"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the code of the first CommonError in err's chain
func ErrorCode(err error) string {
	var ce *CommonError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

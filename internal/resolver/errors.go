package resolver

import (
	"errors"
	"fmt"
)

// ErrMappingUnresolved matches every *MappingError.
var ErrMappingUnresolved = errors.New("mapping unresolved")

// Failure codes, used for summary buckets and metrics labels.
const (
	CodeRectNotFound     = "rect_not_found"
	CodeMissingMapping   = "missing_mapping"
	CodeNoExport         = "no_export"
	CodeAssetMissing     = "asset_missing"
	CodeNoRect           = "no_rect"
	CodeInvalidGeometry  = "invalid_geometry"
	CodeExtractionFailed = "extraction_failed"
)

// MappingError is a failed resolution. Reason is the operator-facing text
// stored on the tile.
type MappingError struct {
	Code   string
	Reason string
	Err    error
}

func (e *MappingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *MappingError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMappingUnresolved) hold for any MappingError.
func (e *MappingError) Is(target error) bool { return target == ErrMappingUnresolved }

func newMappingError(code, reason string, err error) *MappingError {
	return &MappingError{Code: code, Reason: reason, Err: err}
}

// AsMappingError extracts the MappingError from err.
func AsMappingError(err error) (*MappingError, bool) {
	var me *MappingError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

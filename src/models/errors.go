package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Error kinds returned by repositories and services. Nothing in those layers
// panics; callers branch on these with errors.Is / errors.As.
var (
	ErrNotFound         = errors.New("staged record not found")
	ErrValidation       = errors.New("validation failed")
	ErrRepository       = errors.New("repository failure")
	ErrPromotionFailed  = errors.New("promotion failed")
	ErrAlreadyProcessed = errors.New("staged record already processed")
)

// VersionConflictError rejects a mutation whose expectedVersion does not
// match the stored version. Found carries the authoritative current version
// so the caller can re-derive and retry.
type VersionConflictError struct {
	Expected int64
	Found    int64
}

// The "Version conflict" prefix is part of the RPC contract: clients that
// only see the message string match on it and parse the versions back out.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("Version conflict: expected %d, found %d", e.Expected, e.Found)
}

var versionConflictPattern = regexp.MustCompile(`Version conflict: expected (-?\d+), found (-?\d+)`)

// AsVersionConflict extracts a version conflict from err, structurally when
// the typed error survived the boundary, or by parsing the message pattern
// when it arrived flattened to a string.
func AsVersionConflict(err error) (*VersionConflictError, bool) {
	if err == nil {
		return nil, false
	}
	var vc *VersionConflictError
	if errors.As(err, &vc) {
		return vc, true
	}
	m := versionConflictPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return nil, false
	}
	expected, _ := strconv.ParseInt(m[1], 10, 64)
	found, _ := strconv.ParseInt(m[2], 10, 64)
	return &VersionConflictError{Expected: expected, Found: found}, true
}

package stackmap

import (
	"errors"
	"fmt"

	"stackmaps/internal/smfmt"
)

var (
	ErrSectionNotFound     = errors.New("stackmap: section " + SectionName + " not found")
	ErrUnsupportedVersion  = errors.New("stackmap: unsupported version")
	ErrMalformedHeader     = errors.New("stackmap: malformed header")
	ErrUnknownLocationKind = errors.New("stackmap: unknown location kind")
	ErrMalformedLocation   = errors.New("stackmap: malformed location")
	ErrRecordCount         = errors.New("stackmap: function record counts do not match header")

	// ErrTruncated is returned for reads past the end of the section.
	ErrTruncated = smfmt.ErrTruncated
)

// VersionError reports a header version other than Version.
type VersionError struct {
	Want uint8
	Got  uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("stackmap: expected format v%d but section is v%d", e.Want, e.Got)
}

func (e *VersionError) Unwrap() error { return ErrUnsupportedVersion }

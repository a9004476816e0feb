package index

import "github.com/volscan/volscan/internal/ntfsfmt"

// StandardInfo is the per-record $STANDARD_INFORMATION snapshot (spec.md
// §3 "Record... Holds StandardInfo"), grounded on
// original_source/core/standard_info.hpp's packed attribute-flag bitfield.
// Timestamps are kept as raw NTFS FILETIME (100ns ticks since 1601-01-01)
// so callers decide how/whether to convert them.
type StandardInfo struct {
	CreationTime      uint64
	LastModifiedTime  uint64
	LastMFTChangeTime uint64
	LastAccessTime    uint64
	attributes        uint32
}

// Attributes returns the FILE_ATTRIBUTE_* bitmask (spec.md §6 "File
// attributes").
func (s StandardInfo) Attributes() uint32 { return s.attributes }

// SetAttributes replaces the attribute bitmask.
func (s *StandardInfo) SetAttributes(v uint32) { s.attributes = v }

// SetDirectory ORs in FILE_ATTRIBUTE_DIRECTORY, matching spec.md §4.4's
// "$STANDARD_INFORMATION: ... OR in FILE_ATTRIBUTE_DIRECTORY if the record
// header has the directory flag".
func (s *StandardInfo) SetDirectory() { s.attributes |= ntfsfmt.FileAttributeDirectory }

// IsDirectory reports the FILE_ATTRIBUTE_DIRECTORY bit.
func (s StandardInfo) IsDirectory() bool { return s.attributes&ntfsfmt.FileAttributeDirectory != 0 }

// SetOrphaned ORs in the synthetic "not in bitmap" bit (spec.md §6).
func (s *StandardInfo) SetOrphaned() { s.attributes |= ntfsfmt.FileAttributeOrphaned }

// StandardInfoFromNTFS populates timestamps and attributes from a decoded
// $STANDARD_INFORMATION resident value.
func StandardInfoFromNTFS(si *ntfsfmt.StandardInformation) StandardInfo {
	return StandardInfo{
		CreationTime:      si.CreationTime,
		LastModifiedTime:  si.LastModifiedTime,
		LastMFTChangeTime: si.LastMFTChangeTime,
		LastAccessTime:    si.LastAccessTime,
		attributes:        si.FileAttributes,
	}
}

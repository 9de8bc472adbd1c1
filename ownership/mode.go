package ownership

// Mode is the ownership classification of a value offered at the boundary.
// The set is closed: every consumption site (retrieval, collection,
// teardown) must switch over all four modes.
type Mode uint8

const (
	// Copied indicates a boundary-owned copy; the collector finalizes it.
	Copied Mode = iota
	// BorrowedPointer indicates a raw pointer alias; never finalized.
	BorrowedPointer
	// BorrowedReference indicates an explicit Ref marker; never finalized.
	BorrowedReference
	// Shared indicates externally reference-counted ownership; collection
	// releases the boundary's share instead of destroying the value.
	Shared
)

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case Copied:
		return "copied"
	case BorrowedPointer:
		return "borrowed-pointer"
	case BorrowedReference:
		return "borrowed-reference"
	case Shared:
		return "shared"
	default:
		return "invalid"
	}
}

// Owned reports whether the boundary is responsible for finalizing the
// value (direct destruction, not shared release).
func (m Mode) Owned() bool {
	return m == Copied
}

// Borrowed reports whether the script side holds a non-owning alias.
func (m Mode) Borrowed() bool {
	return m == BorrowedPointer || m == BorrowedReference
}

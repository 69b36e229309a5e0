package core

// MESIState is one line's coherence state under the snooping protocol.
type MESIState string

const (
	MESIInvalid   MESIState = "Invalid"
	MESIShared    MESIState = "Shared"
	MESIExclusive MESIState = "Exclusive"
	MESIModified  MESIState = "Modified"
)

func (s MESIState) String() string { return string(s) }

// IsValid reports whether a line in this state holds live data at all.
func (s MESIState) IsValid() bool {
	return s != MESIInvalid
}

// CanProvideData reports whether a snooped line in this state answers a
// BusRd/BusRdX with its own data instead of leaving the requester to fall
// back to memory. A Shared line's copy is no fresher than memory's, so
// only the sole-owner states qualify (spec.md §4.2's snoop table).
func (s MESIState) CanProvideData() bool {
	return s == MESIExclusive || s == MESIModified
}


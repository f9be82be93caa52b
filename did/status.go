package did

import "fmt"

// Status is a status of the registration transaction reported by the chain.
type Status uint8

const (
	_ Status = iota
	// StatusAdded is reported when transaction is included in a block.
	StatusAdded
	// StatusUpdated is reported when transaction block height changes.
	StatusUpdated
	// StatusDeleted is reported when transaction is rolled back by chain
	// reorganization.
	StatusDeleted
)

var statusNames = map[Status]string{
	StatusAdded:   "Added",
	StatusUpdated: "Updated",
	StatusDeleted: "Deleted",
}

// String implements fmt.Stringer.
func (x Status) String() string {
	if s, ok := statusNames[x]; ok {
		return s
	}
	return fmt.Sprintf("Status(%d)", uint8(x))
}

// IsValid checks whether x is one of the supported statuses.
func (x Status) IsValid() bool {
	_, ok := statusNames[x]
	return ok
}

// ParseStatus parses status from its String representation.
func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status '%s'", ErrInvalidArgument, s)
}

package integration

import "strconv"

// ExternalID identifies a record on the remote platform. ParentID is the product,
// customer, order or fulfillment id; ChildID is the variant id for catalog items and
// zero everywhere else.
type ExternalID struct {
	ParentID int64
	ChildID  int64
}

// NewExternalID creates an ExternalID; parentID must be positive.
func NewExternalID(parentID, childID int64) (ExternalID, error) {
	if parentID <= 0 || childID < 0 {
		return ExternalID{}, ErrInvalidExternalID
	}
	return ExternalID{ParentID: parentID, ChildID: childID}, nil
}

// IsZero reports whether the record has no remote mapping yet.
func (id ExternalID) IsZero() bool {
	return id.ParentID == 0
}

// HasChild reports whether a variant id is present.
func (id ExternalID) HasChild() bool {
	return id.ChildID != 0
}

// String renders the id as "parent" or "parent/child".
func (id ExternalID) String() string {
	if id.ChildID == 0 {
		return strconv.FormatInt(id.ParentID, 10)
	}
	return strconv.FormatInt(id.ParentID, 10) + "/" + strconv.FormatInt(id.ChildID, 10)
}

package integration

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCustomerGroup = "Commercial"
	DefaultTerritory     = "All Territories"
	DefaultCustomerType  = "Company"
)

// AddressType distinguishes billing from shipping addresses
type AddressType string

const (
	AddressTypeBilling  AddressType = "Billing"
	AddressTypeShipping AddressType = "Shipping"
)

// LocalCustomer is an ERP customer, optionally mapped to a remote customer.
type LocalCustomer struct {
	ID           uuid.UUID
	Name         string
	DisplayName  string
	Group        string
	Territory    string
	CustomerType string
	Email        string
	ExternalID   ExternalID
	SyncEnabled  bool
	Addresses    []Address
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Address belongs to a customer.
type Address struct {
	ID         uuid.UUID
	Title      string
	Type       AddressType
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	Email      string
}

// NewCustomerFromRemote builds a customer (with addresses) from a remote payload.
func NewCustomerFromRemote(rc *RemoteCustomer, group, territory string) (*LocalCustomer, error) {
	if rc == nil || rc.ID <= 0 {
		return nil, ErrInvalidExternalID
	}
	if group == "" {
		group = DefaultCustomerGroup
	}
	if territory == "" {
		territory = DefaultTerritory
	}
	name := CustomerDisplayName(rc)
	now := time.Now()
	c := &LocalCustomer{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		DisplayName:  name,
		Group:        group,
		Territory:    territory,
		CustomerType: DefaultCustomerType,
		Email:        rc.Email,
		ExternalID:   ExternalID{ParentID: rc.ID},
		Addresses:    make([]Address, 0, len(rc.Addresses)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if c.Name == "" {
		c.Name = c.ExternalID.String()
	}
	for i, ra := range rc.Addresses {
		c.Addresses = append(c.Addresses, addressFromRemote(c.Name, i, ra, rc.Email))
	}
	return c, nil
}

// CustomerDisplayName is "first last" when a first name exists, else the email.
func CustomerDisplayName(rc *RemoteCustomer) string {
	if rc.FirstName == "" {
		return rc.Email
	}
	if rc.LastName == "" {
		return rc.FirstName
	}
	return rc.FirstName + " " + rc.LastName
}

func addressFromRemote(title string, idx int, ra RemoteAddress, email string) Address {
	addrType := AddressTypeShipping
	if idx == 0 {
		addrType = AddressTypeBilling
	}
	line1 := ra.Address1
	if line1 == "" {
		line1 = "Address 1"
	}
	city := ra.City
	if city == "" {
		city = "City"
	}
	return Address{
		ID:         uuid.New(),
		Title:      title,
		Type:       addrType,
		Line1:      line1,
		Line2:      ra.Address2,
		City:       city,
		State:      ra.Province,
		PostalCode: ra.Zip,
		Country:    ra.Country,
		Phone:      ra.Phone,
		Email:      email,
	}
}

// ToRemote renders the payload used to create the customer upstream.
func (c *LocalCustomer) ToRemote() RemoteCustomer {
	rc := RemoteCustomer{FirstName: c.Name, Email: c.Email}
	for _, a := range c.Addresses {
		rc.Addresses = append(rc.Addresses, RemoteAddress{
			Address1: a.Line1,
			Address2: a.Line2,
			City:     a.City,
			Province: a.State,
			Country:  a.Country,
			Zip:      a.PostalCode,
			Phone:    a.Phone,
		})
	}
	return rc
}

// NewLocalCustomer creates an unmapped customer that is pushed on the next pass.
func NewLocalCustomer(name string) (*LocalCustomer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidCustomerName
	}
	now := time.Now()
	return &LocalCustomer{
		ID:           uuid.New(),
		Name:         name,
		DisplayName:  name,
		Group:        DefaultCustomerGroup,
		Territory:    DefaultTerritory,
		CustomerType: DefaultCustomerType,
		SyncEnabled:  true,
		Addresses:    make([]Address, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

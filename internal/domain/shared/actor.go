package shared

import "fmt"

// Role is the caller's role as asserted by the authentication collaborator
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleExecutive Role = "executive"
	RoleRequester Role = "requester"
	// RoleDonor is the donor who volunteers for, or is assigned to, a request.
	RoleDonor Role = "donor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleExecutive, RoleRequester, RoleDonor:
		return true
	}
	return false
}

// Actor identifies who is performing an operation
type Actor struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name,omitempty" bson:"name,omitempty"`
	Role Role   `json:"role" bson:"role"`
}

// Capability names a guarded operation
type Capability string

const (
	CapStockWrite         Capability = "stock.write"
	CapDonationSubmit     Capability = "donation.submit"
	CapDonationReview     Capability = "donation.review"
	CapRequestSubmit      Capability = "request.submit"
	CapRequestReview      Capability = "request.review"
	CapRequestStatus      Capability = "request.status"
	CapRequestAssignDonor Capability = "request.assign_donor"
	CapRequestAssignBank  Capability = "request.assign_bank"
	CapRequestCancel      Capability = "request.cancel"
)

var capabilities = map[Capability][]Role{
	CapStockWrite:         {RoleAdmin, RoleExecutive},
	CapDonationSubmit:     {RoleDonor},
	CapDonationReview:     {RoleAdmin, RoleExecutive},
	CapRequestSubmit:      {RoleAdmin, RoleExecutive, RoleRequester},
	CapRequestReview:      {RoleAdmin, RoleExecutive},
	CapRequestStatus:      {RoleAdmin},
	CapRequestAssignDonor: {RoleAdmin, RoleExecutive, RoleDonor},
	CapRequestAssignBank:  {RoleAdmin, RoleExecutive},
	CapRequestCancel:      {RoleAdmin, RoleRequester},
}

// Authorize returns ErrForbidden unless the actor's role holds the capability.
// Ownership rules (a requester cancelling only their own request) are checked by the caller.
func Authorize(actor Actor, capability Capability) error {
	for _, role := range capabilities[capability] {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q lacks %s", ErrForbidden, actor.Role, capability)
}

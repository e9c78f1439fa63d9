package model

// Principal is the authenticated identity attached to a request.  It is
// either a UserPrincipal or an AdminPrincipal; handlers switch on the
// concrete type.
type Principal interface {
	principal()
}

// UserPrincipal is a student signed in through the identity provider.
type UserPrincipal struct {
	UserID     int32
	ExternalID string
	Email      *string
}

// AdminPrincipal is a canteen operator.
type AdminPrincipal struct {
	CanteenID int32
}

func (UserPrincipal) principal()  {}
func (AdminPrincipal) principal() {}

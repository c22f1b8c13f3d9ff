package internal

// Actor is the authenticated caller as seen by services.
type Actor struct {
	UserID    int64
	CompanyID int64
	Role      string
}

func (a Actor) IsAdmin() bool {
	return a.Role == "ADMIN"
}

func (a Actor) IsManager() bool {
	return a.Role == "MANAGER"
}

// CanSeeCompany reports whether the actor may read company-wide data.
func (a Actor) CanSeeCompany() bool {
	return a.IsAdmin() || a.IsManager()
}

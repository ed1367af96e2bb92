package roles

// Role is the single authorization claim carried in tokens.
type Role string

const (
	Customer Role = "customer"
	Admin    Role = "admin"
	Manager  Role = "manager"
)

func (r Role) Valid() bool {
	switch r {
	case Customer, Admin, Manager:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

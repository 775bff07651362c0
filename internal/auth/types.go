package auth

// User is the principal produced by a successful session validation. It is a
// read-only snapshot of the row owned by the external auth server and is
// reconstructed fresh on every lookup.
type User struct {
	ID            string
	Email         string
	Name          string
	Plan          string
	Role          string
	EmailVerified bool
	CreatedAt     string
}

// SessionRow binds an opaque token to a user id and an expiry instant.
// ExpiresAt carries the driver's raw value; normalization happens at
// validation time because the auth server writes it differently per backend.
type SessionRow struct {
	UserID    string
	ExpiresAt any
}

const (
	DefaultPlan = "free"
	DefaultRole = "user"
)

var planLevels = map[string]int{
	"free":       0,
	"pro":        1,
	"team":       2,
	"enterprise": 3,
}

func applyDefaults(u *User) {
	if u.Plan == "" {
		u.Plan = DefaultPlan
	}
	if u.Role == "" {
		u.Role = DefaultRole
	}
}

package entities

// User is an operator allowed to use the admin endpoints (debug, refresh, WhatsApp linking).
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

const RoleAdmin = "admin"

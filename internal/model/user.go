package model

// Role decides which commands an account may run
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// User is a login account
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// IsTeacher checks if user has the teacher role
func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// Actor is the authenticated identity behind a connection or request.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

func (a Actor) IsTeacher() bool {
	return a.Role == RoleTeacher
}

// Actor returns the identity carried in tokens
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

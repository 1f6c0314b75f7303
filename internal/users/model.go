package users

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FullName   string    `json:"fullName"`
	PictureURL string    `json:"pictureUrl"`
	Role       Role      `json:"role"`
	Disabled   bool      `json:"disabled"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the account may use the admin endpoints.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin && !u.Disabled
}

// DirectoryEntry is the public slice of a user shown to people sharing a document.
type DirectoryEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

func (u User) DirectoryEntry() DirectoryEntry {
	return DirectoryEntry{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName}
}

type ListQuery struct {
	Search string
	Limit  int
	Offset int
}

// Patch carries optional admin edits; nil fields are left unchanged.
type Patch struct {
	Username *string `json:"username"`
	FullName *string `json:"fullName"`
	Role     *Role   `json:"role"`
	Disabled *bool   `json:"disabled"`
}

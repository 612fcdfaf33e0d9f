package model

import "time"

// TeamPrivacy controls team visibility inside the organization.
type TeamPrivacy string

const (
	TeamPrivacyOpen   TeamPrivacy = "open"
	TeamPrivacyClosed TeamPrivacy = "closed"
)

// TeamPermissions are the coarse-grained defaults a team grants its members.
type TeamPermissions struct {
	Repository struct {
		Read  bool `json:"read"`
		Write bool `json:"write"`
		Admin bool `json:"admin"`
	} `json:"repository"`
	Issues struct {
		Read   bool `json:"read"`
		Write  bool `json:"write"`
		Delete bool `json:"delete"`
	} `json:"issues"`
	PullRequests struct {
		Read  bool `json:"read"`
		Write bool `json:"write"`
		Merge bool `json:"merge"`
	} `json:"pull_requests"`
}

// DefaultTeamPermissions grants read-only access across the board.
func DefaultTeamPermissions() TeamPermissions {
	var p TeamPermissions
	p.Repository.Read = true
	p.Issues.Read = true
	p.PullRequests.Read = true
	return p
}

// Team is the stored record at accounts/{orgID}/teams/{teamID}.
type Team struct {
	ID          string          `json:"id"`
	OrgID       string          `json:"org_id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Privacy     TeamPrivacy     `json:"privacy"`
	Permissions TeamPermissions `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TeamMember is the stored record at
// accounts/{orgID}/teams/{teamID}/members/{userID}.
type TeamMember struct {
	TeamID   string    `json:"team_id"`
	UserID   string    `json:"user_id"`
	Role     TeamRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
	AddedBy  string    `json:"added_by,omitempty"`
}

// AccessToken is a personal access token record. Only the bcrypt hash of
// the secret half is stored.
type AccessToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Note       string    `json:"note,omitempty"`
	SecretHash []byte    `json:"secret_hash"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

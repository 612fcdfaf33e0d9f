package model

import "time"

// PermissionLevel is the ordered set of repository permission grades:
// read < triage < write < maintain < admin. Threshold checks go through
// AtLeast so a new level only needs a rank entry, not three separate lists.
type PermissionLevel string

const (
	PermissionRead     PermissionLevel = "read"
	PermissionTriage   PermissionLevel = "triage"
	PermissionWrite    PermissionLevel = "write"
	PermissionMaintain PermissionLevel = "maintain"
	PermissionAdmin    PermissionLevel = "admin"
)

var permissionRank = map[PermissionLevel]int{
	PermissionRead:     1,
	PermissionTriage:   2,
	PermissionWrite:    3,
	PermissionMaintain: 4,
	PermissionAdmin:    5,
}

func (l PermissionLevel) Valid() bool {
	_, ok := permissionRank[l]
	return ok
}

// AtLeast reports whether l grants at least the min level. Unknown levels
// never pass a threshold check.
func (l PermissionLevel) AtLeast(min PermissionLevel) bool {
	lr, ok := permissionRank[l]
	if !ok {
		return false
	}
	mr, ok := permissionRank[min]
	if !ok {
		return false
	}
	return lr >= mr
}

// Repository is the stored record at repositories/{id}.
type Repository struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	FullName      string      `json:"full_name"` // owner/repo
	Description   string      `json:"description,omitempty"`
	Private       bool        `json:"private"`
	OwnerID       string      `json:"owner_id"`
	OwnerType     AccountType `json:"owner_type"`
	DefaultBranch string      `json:"default_branch"`
	Topics        []string    `json:"topics,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Collaborator maps an account to a permission level on a single
// repository, independent of organization membership. Stored at
// repositories/{id}/collaborators/{userID}.
type Collaborator struct {
	RepositoryID string          `json:"repository_id"`
	UserID       string          `json:"user_id"`
	Permission   PermissionLevel `json:"permission"`
	RoleName     string          `json:"role_name,omitempty"`
	InvitedBy    string          `json:"invited_by,omitempty"`
	InvitedAt    time.Time       `json:"invited_at"`
}

// TeamAccess grants a team a permission level on a repository.
type TeamAccess struct {
	RepositoryID string          `json:"repository_id"`
	TeamID       string          `json:"team_id"`
	Permission   PermissionLevel `json:"permission"`
	RoleName     string          `json:"role_name,omitempty"`
	GrantedBy    string          `json:"granted_by,omitempty"`
	GrantedAt    time.Time       `json:"granted_at"`
}

package model

import "time"

// AccountType differentiates between user and organization accounts.
// The type tag is immutable once the account is created.
type AccountType string

const (
	AccountTypeUser         AccountType = "user"
	AccountTypeOrganization AccountType = "organization"
)

// OrgRole is the role an account holds inside an organization.
// For privilege purposes owner > admin > member; billing and
// outside_collaborator carry member-level read access only.
type OrgRole string

const (
	OrgRoleOwner               OrgRole = "owner"
	OrgRoleAdmin               OrgRole = "admin"
	OrgRoleMember              OrgRole = "member"
	OrgRoleBilling             OrgRole = "billing"
	OrgRoleOutsideCollaborator OrgRole = "outside_collaborator"
)

func (r OrgRole) Valid() bool {
	switch r {
	case OrgRoleOwner, OrgRoleAdmin, OrgRoleMember, OrgRoleBilling, OrgRoleOutsideCollaborator:
		return true
	}
	return false
}

// TeamRole is the role an account holds inside a team.
type TeamRole string

const (
	TeamRoleMaintainer TeamRole = "maintainer"
	TeamRoleMember     TeamRole = "member"
)

// Action is a closed set of operations permission checks reason about.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionAdmin  Action = "admin"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionAdmin, ActionDelete:
		return true
	}
	return false
}

// Resource is a closed set of resource categories.
type Resource string

const (
	ResourceOrganization Resource = "organization"
	ResourceMember       Resource = "member"
	ResourceTeam         Resource = "team"
	ResourceRepository   Resource = "repository"
)

func (r Resource) Valid() bool {
	switch r {
	case ResourceOrganization, ResourceMember, ResourceTeam, ResourceRepository:
		return true
	}
	return false
}

// OrgScoped reports whether checks against the resource are answered by
// organization membership rather than the account ability list.
func (r Resource) OrgScoped() bool {
	switch r {
	case ResourceOrganization, ResourceMember, ResourceTeam:
		return true
	}
	return false
}

// Ability is a static (action, resource) grant attached directly to an
// account at creation time. Abilities are matched exactly, no inheritance.
type Ability struct {
	Action   Action   `json:"action"`
	Resource Resource `json:"resource"`
}

// Profile holds the public-facing account details.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
	Website  string `json:"website,omitempty"`
}

// Permissions bundles the role list and the static ability grants.
type Permissions struct {
	Roles     []string  `json:"roles"`
	Abilities []Ability `json:"abilities"`
}

// HasRole reports whether the account carries the named role.
func (p Permissions) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAbility reports whether an exact (action, resource) grant exists.
func (p Permissions) HasAbility(action Action, resource Resource) bool {
	for _, a := range p.Abilities {
		if a.Action == action && a.Resource == resource {
			return true
		}
	}
	return false
}

// NotificationSettings controls which notification channels are enabled.
type NotificationSettings struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
}

// PrivacySettings controls profile visibility.
type PrivacySettings struct {
	ProfilePublic bool `json:"profile_public"`
	ShowEmail     bool `json:"show_email"`
}

// OrganizationDefaults holds organization-specific settings; nil for users.
type OrganizationDefaults struct {
	DefaultMemberRole OrgRole `json:"default_member_role"`
	Visibility        string  `json:"visibility"` // public or private
}

// Settings holds per-account preferences.
type Settings struct {
	Language      string                `json:"language"`
	Theme         string                `json:"theme"`
	Notifications NotificationSettings  `json:"notifications"`
	Privacy       PrivacySettings       `json:"privacy"`
	Organization  *OrganizationDefaults `json:"organization,omitempty"`
}

// Account represents a user or organization identity, the subject of
// permission checks. Organization accounts additionally carry OwnerID.
type Account struct {
	ID          string      `json:"id"`
	Type        AccountType `json:"type"`
	Login       string      `json:"login"`
	Profile     Profile     `json:"profile"`
	Permissions Permissions `json:"permissions"`
	Settings    Settings    `json:"settings"`
	Description string      `json:"description,omitempty"`
	OwnerID     string      `json:"owner_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (a *Account) IsUser() bool         { return a.Type == AccountTypeUser }
func (a *Account) IsOrganization() bool { return a.Type == AccountTypeOrganization }

// Membership is the resolved relationship between an account and an
// organization. It is derived, never stored: ownership is determined
// structurally from the organization record and takes precedence over any
// stored member record.
type Membership struct {
	IsMember bool    `json:"is_member"`
	Role     OrgRole `json:"role,omitempty"`
	IsOwner  bool    `json:"is_owner"`
}

// NoMembership is the resolved state for non-members and for every
// fail-closed path.
var NoMembership = Membership{}

// Member is the stored record at accounts/{orgID}/members/{userID}.
type Member struct {
	OrgID     string    `json:"org_id"`
	UserID    string    `json:"user_id"`
	Role      OrgRole   `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
	InvitedBy string    `json:"invited_by,omitempty"`
}

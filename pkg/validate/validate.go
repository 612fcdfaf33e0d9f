// Package validate holds the input validation rules for organization and
// team fields. Errors are returned with descriptive, user-facing messages.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	loginFormat = regexp.MustCompile(`^[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*$`)
	slugFormat  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

const (
	maxNameLen = 100
	maxSlugLen = 39
)

// OrganizationName validates a display name for an organization.
func OrganizationName(name string) error {
	var errs []string
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		errs = append(errs, "name must not be empty")
	}
	if len(trimmed) > maxNameLen {
		errs = append(errs, fmt.Sprintf("name must be at most %d characters", maxNameLen))
	}
	return joined("organization name validation failed", errs)
}

// Login validates a GitHub-style login (the unique account slug).
func Login(login string) error {
	var errs []string
	if login == "" {
		errs = append(errs, "login must not be empty")
	} else if len(login) > maxSlugLen {
		errs = append(errs, fmt.Sprintf("login must be at most %d characters", maxSlugLen))
	} else if !loginFormat.MatchString(login) {
		errs = append(errs, "login may only contain alphanumeric characters and single hyphens, and must not begin or end with a hyphen")
	}
	return joined("login validation failed", errs)
}

// TeamName validates a display name for a team.
func TeamName(name string) error {
	var errs []string
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		errs = append(errs, "team name must not be empty")
	}
	if len(trimmed) > maxNameLen {
		errs = append(errs, fmt.Sprintf("team name must be at most %d characters", maxNameLen))
	}
	return joined("team name validation failed", errs)
}

// TeamSlug validates a URL-friendly team slug.
func TeamSlug(slug string) error {
	var errs []string
	if slug == "" {
		errs = append(errs, "slug must not be empty")
	} else if len(slug) > maxSlugLen {
		errs = append(errs, fmt.Sprintf("slug must be at most %d characters", maxSlugLen))
	} else if !slugFormat.MatchString(slug) {
		errs = append(errs, "slug may only contain lowercase alphanumeric characters separated by single hyphens")
	}
	return joined("team slug validation failed", errs)
}

// Error marks a failed input validation, so callers can map it to a 400
// rather than a 500.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// Errorf builds a validation Error from a format string.
func Errorf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

func joined(prefix string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return &Error{msg: fmt.Sprintf("%s: %s", prefix, strings.Join(errs, ", "))}
}

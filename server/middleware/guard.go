package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/mscno/forgegate/authz"
)

type guardError struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// WriteDecision maps a guard decision onto the HTTP response: 401 with the
// login redirect for unauthenticated callers, 403 with the unauthorized
// redirect for denied ones. It returns true when the request may proceed.
func WriteDecision(w http.ResponseWriter, d authz.Decision) bool {
	switch d.State {
	case authz.GuardAllowed:
		return true
	case authz.GuardDeniedUnauthenticated:
		writeGuardError(w, http.StatusUnauthorized, "authentication required", d.Redirect)
	default:
		writeGuardError(w, http.StatusForbidden, "permission denied", d.Redirect)
	}
	return false
}

func writeGuardError(w http.ResponseWriter, status int, msg, redirect string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(guardError{Error: msg, Redirect: redirect})
}

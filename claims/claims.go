// Package claims is the claim gatherer (spec component O): it maps a
// user record and a granted scope set to the standard claim bundle
// carried in ID tokens and returned from UserInfo.
package claims

import (
	"github.com/dexidp/dex-mini/scope"
	"github.com/dexidp/dex-mini/storage"
)

// StandardClaims is the scope-filtered claim bundle shared by the ID
// token and the UserInfo response.
type StandardClaims struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     *bool  `json:"email_verified,omitempty"`
}

// Gather builds the claim bundle for user, filtered by granted. The sub
// claim is always present; preferred_username requires the "profile"
// scope, and email/email_verified require "email".
func Gather(user *storage.User, granted scope.Set) StandardClaims {
	c := StandardClaims{Sub: user.ID.String()}

	if granted.Has("profile") {
		c.PreferredUsername = user.Username
	}
	if granted.Has("email") {
		if user.Email != "" {
			c.Email = user.Email
		}
		verified := user.Email != ""
		c.EmailVerified = &verified
	}
	return c
}

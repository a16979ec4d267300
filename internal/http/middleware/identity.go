// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the demo identity layer. There is no real authentication
// in this deployment: callers assert who they are with the X-User-ID header,
// and unauthenticated claimers identify by email (X-User-Email). Identity()
// lifts those headers into the Gin context so downstream middleware (logging,
// rate limiting) and handlers share one view of the caller.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Header names carrying the asserted caller identity.
const (
	UserIDHeader    = "X-User-ID"
	UserEmailHeader = "X-User-Email"
)

// Identity copies the caller's asserted identity headers into the Gin context
// under the "userID" and "userEmail" keys. Absent headers leave the keys
// unset so "no identity" stays distinguishable from an empty value.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(UserIDHeader)); uid != "" {
			c.Set("userID", uid)
		}
		if email := strings.TrimSpace(c.GetHeader(UserEmailHeader)); email != "" {
			c.Set("userEmail", email)
		}
		c.Next()
	}
}

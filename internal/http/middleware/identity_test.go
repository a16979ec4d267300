package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdentity_LiftsHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())

	var gotUID, gotEmail any
	var uidSet, emailSet bool
	r.GET("/", func(c *gin.Context) {
		gotUID, uidSet = c.Get("userID")
		gotEmail, emailSet = c.Get("userEmail")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, "  user123 ")
	req.Header.Set(UserEmailHeader, "claimer@example.com")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if !uidSet || gotUID != "user123" {
		t.Fatalf("userID = %v (set=%v), want user123", gotUID, uidSet)
	}
	if !emailSet || gotEmail != "claimer@example.com" {
		t.Fatalf("userEmail = %v (set=%v)", gotEmail, emailSet)
	}
}

func TestIdentity_AbsentHeadersLeaveKeysUnset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())

	var uidSet, emailSet bool
	r.GET("/", func(c *gin.Context) {
		_, uidSet = c.Get("userID")
		_, emailSet = c.Get("userEmail")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, "   ") // whitespace only
	r.ServeHTTP(httptest.NewRecorder(), req)

	if uidSet || emailSet {
		t.Fatalf("expected no identity keys, got userID=%v userEmail=%v", uidSet, emailSet)
	}
}

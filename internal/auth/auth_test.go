package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueValidateRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	memberID := uuid.New()
	roomID := uuid.New()

	token, err := issuer.Issue(memberID, roomID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, memberID.String(), claims.MemberID)
	assert.Equal(t, roomID.String(), claims.RoomID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a").Issue(uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b").Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewTokenIssuer("secret").Validate("not.a.token")
	assert.Error(t, err)
}

func newMiddlewareRouter(issuer *TokenIssuer) (*gin.Engine, *uuid.UUID, *uuid.UUID) {
	gin.SetMode(gin.TestMode)
	var gotMember, gotRoom uuid.UUID

	r := gin.New()
	r.GET("/protected", Middleware(issuer), func(c *gin.Context) {
		gotMember = MemberID(c)
		id, _ := c.Get(ContextRoomID)
		gotRoom, _ = id.(uuid.UUID)
		c.Status(http.StatusNoContent)
	})
	return r, &gotMember, &gotRoom
}

func TestMiddlewareSetsIdentity(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	memberID := uuid.New()
	roomID := uuid.New()
	token, err := issuer.Issue(memberID, roomID)
	require.NoError(t, err)

	r, gotMember, gotRoom := newMiddlewareRouter(issuer)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, memberID, *gotMember)
	assert.Equal(t, roomID, *gotRoom)
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	memberID := uuid.New()
	token, err := issuer.Issue(memberID, uuid.New())
	require.NoError(t, err)

	r, gotMember, _ := newMiddlewareRouter(issuer)

	req := httptest.NewRequest("GET", "/protected?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, memberID, *gotMember)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	r, _, _ := newMiddlewareRouter(NewTokenIssuer("test-secret"))

	req := httptest.NewRequest("GET", "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsTamperedToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	token, err := issuer.Issue(uuid.New(), uuid.New())
	require.NoError(t, err)

	r, _, _ := newMiddlewareRouter(issuer)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

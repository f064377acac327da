package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/moahnaf11/Messaging-App-Backend/internal/auth"
)

const handshakeSecret = "handshake-secret"

func signHandshakeToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(handshakeSecret))
	require.NoError(t, err)
	return token
}

func TestAuthorize_Puts_The_Verified_User_ID_On_The_Context(t *testing.T) {
	req := require.New(t)
	userID := uuid.NewString()
	var got string
	handler := Authorize(auth.NewVerifier(handshakeSecret), func(rw http.ResponseWriter, r *http.Request) {
		got = userIDFrom(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/ws?token="+signHandshakeToken(t, userID), nil)
	rec := httptest.NewRecorder()
	handler(rec, r)

	req.Equal(http.StatusOK, rec.Code)
	req.Equal(userID, got)
}

func TestAuthorize_Falls_Back_To_The_Auth_Cookie(t *testing.T) {
	req := require.New(t)
	userID := uuid.NewString()
	var got string
	handler := Authorize(auth.NewVerifier(handshakeSecret), func(rw http.ResponseWriter, r *http.Request) {
		got = userIDFrom(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "Auth", Value: signHandshakeToken(t, userID)})
	rec := httptest.NewRecorder()
	handler(rec, r)

	req.Equal(http.StatusOK, rec.Code)
	req.Equal(userID, got)
}

func TestAuthorize_Rejects_A_Request_Without_Credentials(t *testing.T) {
	req := require.New(t)
	called := false
	handler := Authorize(auth.NewVerifier(handshakeSecret), func(rw http.ResponseWriter, r *http.Request) {
		called = true
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	req.Equal(http.StatusUnauthorized, rec.Code)
	req.False(called)
}

func TestAuthorize_Rejects_A_Forged_Token(t *testing.T) {
	req := require.New(t)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: uuid.NewString(),
	}).SignedString([]byte("wrong-secret"))
	req.NoError(err)
	handler := Authorize(auth.NewVerifier(handshakeSecret), func(rw http.ResponseWriter, r *http.Request) {
		t.Fatal("forged token must not reach the handler")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+forged, nil))

	req.Equal(http.StatusUnauthorized, rec.Code)
}

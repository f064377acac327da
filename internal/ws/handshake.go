package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/moahnaf11/Messaging-App-Backend/internal/auth"
)

/*
upgrader is used to establish WebSocket connections.  It is safe for
concurrent use.
*/
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ctxKey is the context type under which the authenticated user id travels
// from the handshake middleware to the connection handler.
type ctxKey string

const uidKey ctxKey = "uid"

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(uidKey).(string)
	return id
}

/*
Authorize verifies the signed credential before the upgrade is attempted.
The token is the same JWT the HTTP layer issues at login, read from the Auth
cookie or, for clients that cannot set cookies on WebSocket requests, the
token query parameter.  A connection therefore carries a verified identity
before it is ever registered for routing; there is no client-supplied
"login" event to trust.
*/
func Authorize(v *auth.Verifier, next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			cookie, err := r.Cookie("Auth")
			if err != nil {
				http.Error(rw, "Sign in to start chatting.", http.StatusUnauthorized)
				return
			}
			token = cookie.Value
		}

		claims, err := v.Verify(token)
		if err != nil {
			http.Error(rw, "Sign in to start chatting.", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), uidKey, claims.UserID)
		next.ServeHTTP(rw, r.WithContext(ctx))
	}
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func operatorToken(secret, userID, role string, ttl time.Duration) string {
	claims := OperatorClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}

func serveWithToken(handler http.Handler, method, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/carts/sale", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// Requests without a usable bearer token never reach the handler
func TestProperty_MissingOrMalformedTokensRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing header, missing Bearer prefix or garbage token gives 401", prop.ForAll(
		func(raw string, shape int, method string) bool {
			var header string
			switch shape {
			case 0:
				header = ""
			case 1:
				header = raw
			default:
				header = "Bearer " + raw
			}

			reached := false
			handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
			}))

			w := serveWithToken(handler, method, header)
			return !reached && w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
		gen.IntRange(0, 2),
		gen.OneConstOf(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Expired tokens and tokens signed with another secret are rejected
func TestProperty_ExpiredOrForeignTokensRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expired or foreign tokens give 401", prop.ForAll(
		func(userID, role string, expired bool) bool {
			token := operatorToken("another-secret", userID, role, time.Hour)
			if expired {
				token = operatorToken(testSecret, userID, role, -time.Hour)
			}

			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())
			return serveWithToken(handler, http.MethodGet, "Bearer "+token).Code == http.StatusUnauthorized
		},
		gen.Identifier(),
		gen.OneConstOf(RoleCashier, RoleManager),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// A token must name both the operator and the role
func TestProperty_BlankOperatorClaimsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("blank user_id or role gives 401", prop.ForAll(
		func(userID, role string, blankUser bool) bool {
			if blankUser {
				userID = ""
			} else {
				role = ""
			}

			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())
			token := operatorToken(testSecret, userID, role, time.Hour)
			return serveWithToken(handler, http.MethodGet, "Bearer "+token).Code == http.StatusUnauthorized
		},
		gen.Identifier(),
		gen.OneConstOf(RoleCashier, RoleManager),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// The token's operator is what downstream handlers key carts and records by
func TestProperty_TokenOperatorReachesHandler(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("user_id and role from the token are on the request context", prop.ForAll(
		func(userID, role string) bool {
			var gotUser, gotRole string
			handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = GetUserID(r.Context())
				gotRole, _ = GetUserRole(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			w := serveWithToken(handler, http.MethodPost, "Bearer "+operatorToken(testSecret, userID, role, time.Hour))
			return w.Code == http.StatusOK && gotUser == userID && gotRole == role
		},
		gen.Identifier(),
		gen.OneConstOf(RoleCashier, RoleManager),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_WithOperatorRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("WithOperator values are read back unchanged", prop.ForAll(
		func(userID, role string) bool {
			ctx := WithOperator(context.Background(), userID, role)
			gotUser, okUser := GetUserID(ctx)
			gotRole, okRole := GetUserRole(ctx)
			return okUser && okRole && gotUser == userID && gotRole == role
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("a bare context carries no operator", prop.ForAll(
		func(_ int) bool {
			_, okUser := GetUserID(context.Background())
			_, okRole := GetUserRole(context.Background())
			return !okUser && !okRole
		},
		gen.Int(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Manager-only routes admit exactly the tokens whose role is manager
func TestProperty_OnlyManagerTokensPassRequireManager(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("auth then RequireManager gives 200 for managers and 403 otherwise", prop.ForAll(
		func(userID, role string) bool {
			logger := zap.NewNop()
			handler := AuthMiddleware(testSecret, logger)(RequireManager(logger)(okHandler()))

			w := serveWithToken(handler, http.MethodDelete, "Bearer "+operatorToken(testSecret, userID, role, time.Hour))
			if role == RoleManager {
				return w.Code == http.StatusOK
			}
			return w.Code == http.StatusForbidden
		},
		gen.Identifier(),
		gen.OneConstOf(RoleCashier, RoleManager, "supervisor", "MANAGER"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-studychat/internal/config"
	"github.com/npezzotti/go-studychat/internal/database"
	"github.com/npezzotti/go-studychat/internal/server"
	"github.com/npezzotti/go-studychat/internal/stats"
	"github.com/npezzotti/go-studychat/internal/testutil"
	"github.com/stretchr/testify/mock"
)

var testSigningKey = []byte("test-signing-key")

func signToken(t *testing.T, key []byte, sub string, exp time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		subjectClaim: sub,
		"exp":        time.Now().Add(exp).Unix(),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:     "localhost:0",
		Store:          "badger",
		SigningKey:     testSigningKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

// newTestApp wires an app over an in-memory store.
func newTestApp(t *testing.T) (*StudyChatApp, *server.ChatServer) {
	t.Helper()

	sp := &stats.MockStatsUpdater{}
	sp.On("Incr", mock.Anything).Maybe()
	sp.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	store := testutil.InMemoryStore(t)
	cs := server.NewChatServer(logger, store, sp, nil)
	return NewStudyChatApp(http.NewServeMux(), logger, cs, store, testConfig()), cs
}

func authedRequest(t *testing.T, req *http.Request, userId string) *http.Request {
	t.Helper()
	req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: signToken(t, testSigningKey, userId, time.Hour)})
	return req
}

func newMockStoreApp(t *testing.T, store *database.MockMessageStore) *StudyChatApp {
	t.Helper()
	return NewStudyChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, store, testConfig())
}

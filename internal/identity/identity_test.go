package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Nate-Schaefer/SmartDart-App/internal/apperr"
	"github.com/Nate-Schaefer/SmartDart-App/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticGateway(t *testing.T) {
	gw := NewStaticGateway(map[string]string{"t1": "u1"})
	ctx := context.Background()

	id, err := gw.Verify(ctx, Credentials{BearerToken: "t1"})
	require.NoError(t, err)
	require.Equal(t, "u1", id)

	_, err = gw.Verify(ctx, Credentials{BearerToken: "nope"})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = gw.Verify(ctx, Credentials{})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestHeaderGateway(t *testing.T) {
	gw := NewHeaderGateway("svc")
	ctx := context.Background()

	id, err := gw.Verify(ctx, Credentials{BearerToken: "svc", ForwardedUserID: " u1 "})
	require.NoError(t, err)
	require.Equal(t, "u1", id)

	_, err = gw.Verify(ctx, Credentials{BearerToken: "svc"})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = gw.Verify(ctx, Credentials{BearerToken: "other", ForwardedUserID: "u1"})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", bearerToken("Bearer abc"))
	require.Equal(t, "abc", bearerToken("bearer  abc "))
	require.Equal(t, "abc", bearerToken("abc"))
	require.Equal(t, "", bearerToken(""))
}

func TestRemoteGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/validate", r.URL.Path)
		assert.Equal(t, "Bearer svc", r.Header.Get("Authorization"))

		var body validateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body.AccessToken {
		case "good":
			_ = json.NewEncoder(w).Encode(validateResponse{UserID: "u1"})
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	gw := NewRemoteGateway(srv.URL+"/", WithServiceToken("svc"), WithTimeout(time.Second))
	ctx := context.Background()

	id, err := gw.Verify(ctx, Credentials{BearerToken: "good"})
	require.NoError(t, err)
	require.Equal(t, "u1", id)

	_, err = gw.Verify(ctx, Credentials{BearerToken: "bad"})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = gw.Verify(ctx, Credentials{BearerToken: "broken"})
	require.ErrorIs(t, err, apperr.ErrStoreUnavailable)

	_, err = gw.Verify(ctx, Credentials{})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRemoteGatewayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := NewRemoteGateway(url, WithTimeout(200*time.Millisecond))
	_, err := gw.Verify(context.Background(), Credentials{BearerToken: "t"})
	require.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestNewSelectsMode(t *testing.T) {
	gw, err := New(config.AuthConfig{Mode: "static", StaticTokens: map[string]string{"t": "u"}})
	require.NoError(t, err)
	require.IsType(t, &StaticGateway{}, gw)

	gw, err = New(config.AuthConfig{Mode: "header", ServiceToken: "s"})
	require.NoError(t, err)
	require.IsType(t, &HeaderGateway{}, gw)

	gw, err = New(config.AuthConfig{Mode: "remote", RemoteURL: "http://auth:8080"})
	require.NoError(t, err)
	require.IsType(t, &RemoteGateway{}, gw)

	_, err = New(config.AuthConfig{Mode: "jwt"})
	require.Error(t, err)
}

func TestRequireUser(t *testing.T) {
	app := fiber.New()
	app.Get("/me", RequireUser(NewHeaderGateway("svc")), func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer svc")
	req.Header.Set(HeaderUserID, "u42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "u42", string(body))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "u42")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

package supabase

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
)

type fakeAuthAPI struct {
	userID uuid.UUID
	err    error
}

func (f *fakeAuthAPI) Signup(req types.SignupRequest) (*types.SignupResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := &types.SignupResponse{}
	resp.User.ID = f.userID
	resp.User.Email = req.Email
	resp.Session.AccessToken = "signup-token"
	return resp, nil
}

func (f *fakeAuthAPI) SignInWithEmailPassword(email, password string) (*types.TokenResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := &types.TokenResponse{}
	resp.User.ID = f.userID
	resp.User.Email = email
	resp.AccessToken = "login-token"
	return resp, nil
}

func newTestAuth(api *fakeAuthAPI) *Auth {
	return &Auth{
		api: api,
		userByToken: func(token string) (*types.UserResponse, error) {
			if token != "good-token" {
				return nil, errors.New("401: invalid JWT")
			}
			resp := &types.UserResponse{}
			resp.ID = api.userID
			resp.Email = "ada@example.com"
			return resp, nil
		},
	}
}

func TestAuth_SignUp(t *testing.T) {
	id := uuid.New()
	auth := newTestAuth(&fakeAuthAPI{userID: id})

	user, err := auth.SignUp("ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, id.String(), user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "signup-token", user.AccessToken)
}

func TestAuth_SignUpError(t *testing.T) {
	auth := newTestAuth(&fakeAuthAPI{err: errors.New("422: user already registered")})

	_, err := auth.SignUp("ada@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrSignupFailed)
}

func TestAuth_SignIn(t *testing.T) {
	id := uuid.New()
	auth := newTestAuth(&fakeAuthAPI{userID: id})

	user, err := auth.SignIn("ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, id.String(), user.ID)
	assert.Equal(t, "login-token", user.AccessToken)

	auth = newTestAuth(&fakeAuthAPI{err: errors.New("400: invalid grant")})
	_, err = auth.SignIn("ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_Verify(t *testing.T) {
	id := uuid.New()
	auth := newTestAuth(&fakeAuthAPI{userID: id})

	user, err := auth.Verify("good-token")
	require.NoError(t, err)
	assert.Equal(t, id.String(), user.ID)

	_, err = auth.Verify("bad-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

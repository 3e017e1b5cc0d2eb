package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/auth"
	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository/memory"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()

	store := memory.New()
	hash, err := auth.HashPassword("student123")
	require.NoError(t, err)
	require.NoError(t, store.Users().Upsert(context.Background(), &model.User{
		ID:           "s1",
		Name:         "student1",
		PasswordHash: hash,
		Role:         model.RoleStudent,
	}))

	tokens := auth.NewManager("secret", "scheduler", time.Hour)
	return NewAuthService(store.Users(), tokens, zap.NewNop())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService(t)

	t.Run("valid credentials", func(t *testing.T) {
		session, err := svc.Login(ctx, " student1 ", "student123")
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, model.Actor{ID: "s1", Name: "student1", Role: model.RoleStudent}, session.User)

		actor, err := svc.Authenticate(session.Token)
		require.NoError(t, err)
		assert.Equal(t, session.User, actor)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "student1", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, "ghost", "student123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, "", "")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestAuthenticate(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Authenticate("")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Authenticate("garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/class_scheduler/internal/model"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", "scheduler", time.Hour)
	actor := model.Actor{ID: "u-1", Name: "Alice", Role: model.RoleStudent}

	token, exp, err := m.Issue(actor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	got, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestParseRejects(t *testing.T) {
	m := NewManager("secret", "scheduler", time.Hour)
	token, _, err := m.Issue(model.Actor{ID: "u-1", Name: "T", Role: model.RoleTeacher})
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other := NewManager("other", "scheduler", time.Hour)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewManager("secret", "someone-else", time.Hour)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewManager("secret", "scheduler", time.Hour)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			Role:             model.RoleTeacher,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "scheduler"},
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Role:             model.Role("admin"),
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "scheduler"},
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = m.Parse(forged)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("teacher123")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "teacher123"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "teacher123"))
}

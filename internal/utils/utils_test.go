package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPagination(t *testing.T) {
	app := fiber.New()
	var got Pagination
	app.Get("/", func(c *fiber.Ctx) error {
		got = GetPagination(c, 1, 20)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/?page=3&limit=10", nil))
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 3, Limit: 10, Offset: 20}, got)

	_, err = app.Test(httptest.NewRequest("GET", "/?page=-1&limit=5000", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, MaxPageSize, got.Limit)

	got.SetTotal(201)
	assert.Equal(t, 3, got.LastPage)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("s3cret", "user-1", "a@b.c", "user", time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserIdentity())
	assert.Equal(t, TokenIssuer, claims.Issuer)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateAccessToken("s3cret", "user-1", "", "user", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("s3cret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

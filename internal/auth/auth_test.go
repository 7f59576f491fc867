package auth

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soloware/dealdesk/internal/clock"
	"github.com/stretchr/testify/assert"
)

func newAuthenticator(t *testing.T, fake *clock.FakeClock) *hmacAuthenticator {
	t.Helper()
	return &hmacAuthenticator{secret: []byte("test-secret"), clock: fake}
}

func TestIssueAndVerify(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	a := newAuthenticator(t, fake)

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)
	userID := node.Generate()

	token, err := a.Issue(userID, time.Hour)
	assert.NoError(t, err)

	got, err := a.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifyRejectsTampering(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	a := newAuthenticator(t, fake)

	node, _ := snowflake.NewNode(1)
	token, err := a.Issue(node.Generate(), time.Hour)
	assert.NoError(t, err)

	_, err = a.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := &hmacAuthenticator{secret: []byte("other-secret"), clock: fake}
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	a := newAuthenticator(t, fake)

	node, _ := snowflake.NewNode(1)
	token, err := a.Issue(node.Generate(), time.Hour)
	assert.NoError(t, err)

	fake.Advance(2 * time.Hour)
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

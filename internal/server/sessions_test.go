package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsExpire(t *testing.T) {
	sessions := NewSessions(20 * time.Millisecond)

	session := sessions.Create()
	got, err := sessions.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, 1, sessions.Len())

	time.Sleep(60 * time.Millisecond)

	_, err = sessions.Get(session.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(sessions.Delete(session.ID), ErrSessionNotFound))
}

func TestNewSessionView(t *testing.T) {
	session := NewSessions(time.Minute).Create()

	view := session.View()
	assert.Equal(t, session.ID, view.ID)
	assert.Empty(t, view.History)
	assert.NotNil(t, view.FocusIDs)
	assert.Zero(t, view.Turns)
	assert.True(t, view.Totals.IsZero())
}

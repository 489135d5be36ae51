package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-center/internal/domain"
)

func TestCall_CloseReopenCycle(t *testing.T) {
	// Arrange
	call := &domain.Call{Status: domain.CallStatusActive}
	now := time.Now()

	// Act + Assert: active -> closed stamps ClosedAt
	require.NoError(t, call.Close(now))
	assert.Equal(t, domain.CallStatusClosed, call.Status)
	require.NotNil(t, call.ClosedAt)
	assert.Equal(t, now, *call.ClosedAt)

	// closed -> active clears ClosedAt
	require.NoError(t, call.Reopen())
	assert.Equal(t, domain.CallStatusActive, call.Status)
	assert.Nil(t, call.ClosedAt)

	// and the cycle repeats
	require.NoError(t, call.Close(now))
	assert.Equal(t, domain.CallStatusClosed, call.Status)
}

func TestCall_CloseRejectedWhenNotActive(t *testing.T) {
	call := &domain.Call{Status: domain.CallStatusClosed}

	err := call.Close(time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Equal(t, domain.CallStatusClosed, call.Status)
}

func TestCall_ReopenRejectedWhenActive(t *testing.T) {
	call := &domain.Call{Status: domain.CallStatusActive}

	err := call.Reopen()

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestCall_AbandonedIsTerminal(t *testing.T) {
	call := &domain.Call{Status: domain.CallStatusActive}
	require.NoError(t, call.Abandon())
	assert.Equal(t, domain.CallStatusAbandoned, call.Status)
	assert.Nil(t, call.ClosedAt)

	// No transition leaves abandoned, including reopen.
	assert.Error(t, call.Reopen())
	assert.Error(t, call.Close(time.Now()))
	assert.Error(t, call.Abandon())
}

func TestCallStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to domain.CallStatus
		want     bool
	}{
		{domain.CallStatusActive, domain.CallStatusClosed, true},
		{domain.CallStatusActive, domain.CallStatusAbandoned, true},
		{domain.CallStatusClosed, domain.CallStatusActive, true},
		{domain.CallStatusClosed, domain.CallStatusAbandoned, false},
		{domain.CallStatusAbandoned, domain.CallStatusActive, false},
		{domain.CallStatusAbandoned, domain.CallStatusClosed, false},
		{domain.CallStatusActive, domain.CallStatusActive, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestFormatCallNumber(t *testing.T) {
	assert.Equal(t, "202608-0042", domain.FormatCallNumber("202608", 42))
	assert.Equal(t, "202601-0001", domain.FormatCallNumber("202601", 1))
	// Sequences past four digits widen instead of truncating.
	assert.Equal(t, "202608-12345", domain.FormatCallNumber("202608", 12345))
}

func TestCallNumberPeriod(t *testing.T) {
	ts := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "202608", domain.CallNumberPeriod(ts))
}

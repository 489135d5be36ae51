package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-center/internal/domain"
)

func TestAssignment_LinearProgression(t *testing.T) {
	a := &domain.CallAssignment{Status: domain.AssignmentStatusAssigned}
	now := time.Now()

	require.NoError(t, a.Advance(domain.AssignmentStatusEnroute, now))
	assert.Equal(t, domain.AssignmentStatusEnroute, a.Status)
	assert.Nil(t, a.ArrivedAt)

	require.NoError(t, a.Advance(domain.AssignmentStatusOnScene, now))
	assert.Equal(t, domain.AssignmentStatusOnScene, a.Status)
	require.NotNil(t, a.ArrivedAt)

	require.NoError(t, a.Advance(domain.AssignmentStatusCompleted, now))
	assert.Equal(t, domain.AssignmentStatusCompleted, a.Status)
	require.NotNil(t, a.CompletedAt)
}

func TestAssignment_RegressionRejected(t *testing.T) {
	a := &domain.CallAssignment{Status: domain.AssignmentStatusOnScene}

	err := a.Advance(domain.AssignmentStatusAssigned, time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	// Rejected transitions leave the assignment untouched.
	assert.Equal(t, domain.AssignmentStatusOnScene, a.Status)
	assert.Nil(t, a.CompletedAt)
}

func TestAssignment_ForwardSkipAllowed(t *testing.T) {
	a := &domain.CallAssignment{Status: domain.AssignmentStatusAssigned}
	now := time.Now()

	// Skipping enroute and onscene straight to completed still stamps both
	// arrival and completion.
	require.NoError(t, a.Advance(domain.AssignmentStatusCompleted, now))
	assert.Equal(t, domain.AssignmentStatusCompleted, a.Status)
	require.NotNil(t, a.ArrivedAt)
	require.NotNil(t, a.CompletedAt)
}

func TestAssignment_UnknownStatusRejected(t *testing.T) {
	a := &domain.CallAssignment{Status: domain.AssignmentStatusAssigned}

	err := a.Advance(domain.AssignmentStatus("teleported"), time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestAssignmentStatus_CanAdvanceTo(t *testing.T) {
	assert.True(t, domain.AssignmentStatusAssigned.CanAdvanceTo(domain.AssignmentStatusEnroute))
	assert.True(t, domain.AssignmentStatusEnroute.CanAdvanceTo(domain.AssignmentStatusCompleted))
	assert.False(t, domain.AssignmentStatusCompleted.CanAdvanceTo(domain.AssignmentStatusOnScene))
	assert.False(t, domain.AssignmentStatusAssigned.CanAdvanceTo(domain.AssignmentStatusAssigned))
}

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/cloudsync/internal/logger"
	"github.com/MKhiriev/cloudsync/internal/mock"
	"github.com/MKhiriev/cloudsync/internal/statestore"
)

const (
	testZoneFlag = "zone/created"
	testSubFlag  = "zone/subscribed"
)

func newTestSetup(t *testing.T, state statestore.StateStore) (*setup, *mock.MockProvisioner) {
	t.Helper()

	provisioner := mock.NewMockProvisioner(gomock.NewController(t))
	return newSetup(provisioner, state, testZoneFlag, testSubFlag, logger.Nop()), provisioner
}

func TestSetup_EnsureReadyProvisionsOnce(t *testing.T) {
	ctx := context.Background()
	s, provisioner := newTestSetup(t, statestore.NewMemory())

	provisioner.EXPECT().EnsureZone(gomock.Any()).Return(true, nil)
	provisioner.EXPECT().EnsureSubscription(gomock.Any()).Return(true, nil)

	require.False(t, s.ready())
	require.NoError(t, s.ensureReady(ctx))
	assert.True(t, s.ready())

	// second call answers from state, no remote round trips
	require.NoError(t, s.ensureReady(ctx))
}

func TestSetup_PersistedFlagsSkipProvisioning(t *testing.T) {
	ctx := context.Background()
	state := statestore.NewMemory()

	first, provisioner := newTestSetup(t, state)
	provisioner.EXPECT().EnsureZone(gomock.Any()).Return(true, nil)
	provisioner.EXPECT().EnsureSubscription(gomock.Any()).Return(true, nil)
	require.NoError(t, first.ensureReady(ctx))

	// a fresh instance over the same state trusts the flags
	second, _ := newTestSetup(t, state)
	require.NoError(t, second.ensureReady(ctx))
	assert.True(t, second.ready())
}

func TestSetup_ZoneFailureLeavesUnprovisioned(t *testing.T) {
	ctx := context.Background()
	s, provisioner := newTestSetup(t, statestore.NewMemory())

	boom := errors.New("quota exceeded")
	provisioner.EXPECT().EnsureZone(gomock.Any()).Return(false, boom)

	err := s.ensureReady(ctx)
	require.ErrorIs(t, err, boom)
	assert.False(t, s.ready())
	assert.Equal(t, stateUnprovisioned, s.current)
}

func TestSetup_UnconfirmedProvisioningIsAnError(t *testing.T) {
	ctx := context.Background()
	s, provisioner := newTestSetup(t, statestore.NewMemory())

	provisioner.EXPECT().EnsureZone(gomock.Any()).Return(true, nil)
	provisioner.EXPECT().EnsureSubscription(gomock.Any()).Return(false, nil)

	err := s.ensureReady(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription")
	assert.False(t, s.ready())
}

func TestSetup_InvalidateClearsFlags(t *testing.T) {
	ctx := context.Background()
	state := statestore.NewMemory()
	s, provisioner := newTestSetup(t, state)

	provisioner.EXPECT().EnsureZone(gomock.Any()).Return(true, nil).Times(2)
	provisioner.EXPECT().EnsureSubscription(gomock.Any()).Return(true, nil).Times(2)

	require.NoError(t, s.ensureReady(ctx))
	s.invalidate(ctx)
	require.False(t, s.ready())

	_, ok, err := state.Get(ctx, testZoneFlag)
	require.NoError(t, err)
	assert.False(t, ok)

	// drift detected, the next start provisions again
	require.NoError(t, s.ensureReady(ctx))
	assert.True(t, s.ready())
}

func TestSetup_VerifyReprovisionsDespiteFlags(t *testing.T) {
	ctx := context.Background()
	s, provisioner := newTestSetup(t, statestore.NewMemory())

	provisioner.EXPECT().EnsureZone(gomock.Any()).Return(true, nil).Times(2)
	provisioner.EXPECT().EnsureSubscription(gomock.Any()).Return(true, nil).Times(2)

	require.NoError(t, s.ensureReady(ctx))
	require.NoError(t, s.verify(ctx))
	assert.True(t, s.ready())
}

func TestSetupState_String(t *testing.T) {
	assert.Equal(t, "unprovisioned", stateUnprovisioned.String())
	assert.Equal(t, "provisioning", stateProvisioning.String())
	assert.Equal(t, "ready", stateReady.String())
}

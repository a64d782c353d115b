package engine

import (
	"context"
	"fmt"

	"github.com/MKhiriev/cloudsync/internal/logger"
	"github.com/MKhiriev/cloudsync/internal/remote"
	"github.com/MKhiriev/cloudsync/internal/statestore"
)

// setupState models the remote provisioning lifecycle. The machine is
// evaluated once at engine start and re-entered via Verify when drift
// is detected (e.g. the zone vanished mid-push).
type setupState int

const (
	stateUnprovisioned setupState = iota
	stateProvisioning
	stateReady
)

func (s setupState) String() string {
	switch s {
	case stateUnprovisioned:
		return "unprovisioned"
	case stateProvisioning:
		return "provisioning"
	case stateReady:
		return "ready"
	default:
		return "unknown"
	}
}

const flagSet = "1"

// setup tracks whether the remote zone and change subscription exist.
// The persisted flags are self-healing state, not a cache: when a later
// check discovers they no longer hold they are reset to false and
// re-verified, never trusted silently.
type setup struct {
	provisioner remote.Provisioner
	state       statestore.StateStore
	log         *logger.Logger

	zoneKey string
	subKey  string

	current setupState
}

func newSetup(provisioner remote.Provisioner, state statestore.StateStore, zoneKey, subKey string, log *logger.Logger) *setup {
	return &setup{
		provisioner: provisioner,
		state:       state,
		log:         log,
		zoneKey:     zoneKey,
		subKey:      subKey,
		current:     stateUnprovisioned,
	}
}

func (s *setup) ready() bool { return s.current == stateReady }

// ensureReady drives the machine to Ready, provisioning whatever the
// persisted flags say is missing. Idempotent; safe on every start.
func (s *setup) ensureReady(ctx context.Context) error {
	if s.current == stateReady {
		return nil
	}
	s.current = stateProvisioning

	if err := s.ensureFlag(ctx, s.zoneKey, "zone", s.provisioner.EnsureZone); err != nil {
		s.current = stateUnprovisioned
		return err
	}
	if err := s.ensureFlag(ctx, s.subKey, "subscription", s.provisioner.EnsureSubscription); err != nil {
		s.current = stateUnprovisioned
		return err
	}

	s.current = stateReady
	s.log.Debug().Msg("remote setup ready")
	return nil
}

// invalidate records detected drift: both flags are cleared and the
// machine drops out of Ready so the next start re-verifies.
func (s *setup) invalidate(ctx context.Context) {
	s.current = stateUnprovisioned
	if err := s.state.Delete(ctx, s.zoneKey); err != nil {
		s.log.Err(err).Msg("clearing zone flag")
	}
	if err := s.state.Delete(ctx, s.subKey); err != nil {
		s.log.Err(err).Msg("clearing subscription flag")
	}
}

// verify forces a re-check of both resources regardless of the
// persisted flags.
func (s *setup) verify(ctx context.Context) error {
	s.invalidate(ctx)
	return s.ensureReady(ctx)
}

func (s *setup) ensureFlag(ctx context.Context, key, what string, ensure func(context.Context) (bool, error)) error {
	value, ok, err := s.state.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s flag: %w", what, err)
	}
	if ok && string(value) == flagSet {
		return nil
	}

	exists, err := ensure(ctx)
	if err != nil {
		return fmt.Errorf("ensure %s: %w", what, err)
	}
	if !exists {
		return fmt.Errorf("ensure %s: provisioning did not confirm", what)
	}
	if err = s.state.Set(ctx, key, []byte(flagSet)); err != nil {
		return fmt.Errorf("persist %s flag: %w", what, err)
	}
	s.log.Info().Str("resource", what).Msg("remote resource provisioned")
	return nil
}

package engine

import (
	"github.com/bastiangx/texserve/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

const stateVersion = 1

// persistedState is the msgpack layout written by SaveState.
type persistedState struct {
	Version int             `msgpack:"v"`
	Matches []byte          `msgpack:"m,omitempty"`
	General []byte          `msgpack:"g,omitempty"`
	Enabled map[string]bool `msgpack:"e,omitempty"`
}

// SaveState serializes the general caches and the group enablement.
func (e *Engine) SaveState() ([]byte, error) {
	matches, err := e.matches.Serialize()
	if err != nil {
		return nil, err
	}
	general, err := e.general.Serialize()
	if err != nil {
		return nil, err
	}

	data, err := msgpack.Marshal(persistedState{
		Version: stateVersion,
		Matches: matches,
		General: general,
		Enabled: e.store.Enabled(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode engine state")
	}
	return data, nil
}

// RestoreState loads a blob written by SaveState. Any failure leaves the
// caches empty; the error is logged and returned for the caller's information.
func (e *Engine) RestoreState(data []byte) error {
	var st persistedState
	if err := msgpack.Unmarshal(data, &st); err != nil {
		e.matches.Clear()
		e.general.Clear()
		err = errors.Wrapf(errors.ErrParseFailure, "decode engine state: %v", err)
		log.Warnf("Discarding saved state: %v", err)
		return err
	}
	if st.Version != stateVersion {
		log.Infof("Discarding saved state of version %d", st.Version)
		return nil
	}

	if len(st.Enabled) > 0 {
		e.mu.Lock()
		e.store.SetEnabled(st.Enabled)
		for id, on := range st.Enabled {
			e.cfg.EnabledGroups[id] = on
		}
		if e.State() != StateUninitialized {
			e.publish()
		}
		e.mu.Unlock()
	}

	var errs error
	if len(st.Matches) > 0 {
		if err := e.matches.Restore(st.Matches); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if len(st.General) > 0 {
		if err := e.general.Restore(st.General); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if errs != nil {
		e.matches.Clear()
		e.general.Clear()
		log.Warnf("Discarding saved caches: %v", errs)
		return errs
	}
	log.Debugf("Restored %d cached scope sets", e.general.Len())
	return nil
}

// Package memory provides an in-memory payroll.Store.
package memory

import (
	"context"
	"sync"

	"github.com/warp/nurse-pay/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	rates    []payroll.Rate
	missions []payroll.Mission
	settings payroll.Settings
	failWith error
}

var _ payroll.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		rates:    []payroll.Rate{},
		missions: []payroll.Mission{},
	}
}

// FailWrites makes every subsequent write return err. Pass nil to clear.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// ===== RATES =====

func (m *Memory) ListRates(_ context.Context) ([]payroll.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]payroll.Rate{}, m.rates...), nil
}

func (m *Memory) GetRate(_ context.Context, id string) (*payroll.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rates {
		if r.ID == id {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveRate(_ context.Context, rate payroll.Rate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for i := range m.rates {
		if m.rates[i].ID == rate.ID {
			m.rates[i] = rate
			return nil
		}
	}
	m.rates = append(m.rates, rate)
	return nil
}

func (m *Memory) DeleteRate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	kept := m.rates[:0:0]
	for _, r := range m.rates {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	m.rates = kept
	return nil
}

// ===== MISSIONS =====

func (m *Memory) ListMissions(_ context.Context) ([]payroll.Mission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]payroll.Mission{}, m.missions...), nil
}

func (m *Memory) GetMission(_ context.Context, id string) (*payroll.Mission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ms := range m.missions {
		if ms.ID == id {
			found := ms
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveMission(_ context.Context, mission payroll.Mission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for i := range m.missions {
		if m.missions[i].ID == mission.ID {
			m.missions[i] = mission
			return nil
		}
	}
	m.missions = append(m.missions, mission)
	return nil
}

func (m *Memory) DeleteMission(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	kept := m.missions[:0:0]
	for _, ms := range m.missions {
		if ms.ID != id {
			kept = append(kept, ms)
		}
	}
	m.missions = kept
	return nil
}

// ===== SETTINGS & STATE =====

func (m *Memory) LoadSettings(_ context.Context) (payroll.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, nil
	}
	return m.settings.Clone(), nil
}

func (m *Memory) SaveSettings(_ context.Context, settings payroll.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.settings = settings.Clone()
	return nil
}

// ReplaceAll swaps the state under a single lock acquisition.
func (m *Memory) ReplaceAll(_ context.Context, state payroll.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.rates = append([]payroll.Rate{}, state.Rates...)
	m.missions = append([]payroll.Mission{}, state.Missions...)
	m.settings = state.Settings.Clone()
	return nil
}

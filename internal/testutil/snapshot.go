package testutil

import (
	"maps"
	"slices"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// snapshot captures a mock's contents and returns a func putting them
// back; MockStore uses it to emulate a rolled back transaction.

func (m *MockTransferRepository) snapshot() func() {
	m.mu.RLock()
	saved := slices.Clone(m.transfers)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.transfers = saved
		m.mu.Unlock()
	}
}

func (m *MockRewardRepository) snapshot() func() {
	m.mu.RLock()
	saved := slices.Clone(m.rewards)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.rewards = saved
		m.mu.Unlock()
	}
}

func (m *MockTokenRepository) snapshot() func() {
	m.mu.RLock()
	saved := maps.Clone(m.tokens)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.tokens = saved
		m.mu.Unlock()
	}
}

func (m *MockBalanceRepository) snapshot() func() {
	m.mu.RLock()
	saved := maps.Clone(m.balances)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.balances = saved
		m.mu.Unlock()
	}
}

func (m *MockVestingRepository) snapshot() func() {
	m.mu.RLock()
	stats := maps.Clone(m.stats)
	balances := maps.Clone(m.balances)
	changes := slices.Clone(m.changes)
	var params *entities.VestingParams
	if m.params != nil {
		p := *m.params
		params = &p
	}
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.stats, m.balances, m.changes, m.params = stats, balances, changes, params
		m.mu.Unlock()
	}
}

func (m *MockDelegationRepository) snapshot() func() {
	m.mu.RLock()
	saved := slices.Clone(m.rows)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.rows = saved
		m.mu.Unlock()
	}
}

func (m *MockProposalRepository) snapshot() func() {
	m.mu.RLock()
	saved := maps.Clone(m.proposals)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.proposals = saved
		m.mu.Unlock()
	}
}

func (m *MockWithdrawalRepository) snapshot() func() {
	m.mu.RLock()
	saved := maps.Clone(m.withdrawals)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.withdrawals = saved
		m.mu.Unlock()
	}
}

func (m *MockUserMetaRepository) snapshot() func() {
	m.mu.RLock()
	saved := maps.Clone(m.metas)
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.metas = saved
		m.mu.Unlock()
	}
}

func (m *MockServiceMetaRepository) snapshot() func() {
	m.mu.RLock()
	var saved *entities.ServiceMeta
	if m.meta != nil {
		meta := *m.meta
		saved = &meta
	}
	m.mu.RUnlock()
	return func() {
		m.mu.Lock()
		m.meta = saved
		m.mu.Unlock()
	}
}

package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bimakw/vesting-indexer/internal/domain/entities"
	"github.com/bimakw/vesting-indexer/internal/domain/repositories"
)

type MockCall struct {
	Method string
	Args   []interface{}
}

// callLog is embedded by every mock for call tracking
type callLog struct {
	mu    sync.RWMutex
	Calls []MockCall
}

func (c *callLog) record(method string, args ...interface{}) {
	c.Calls = append(c.Calls, MockCall{Method: method, Args: args})
}

func (c *callLog) locked(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// CallCount returns how many times method was called
func (c *callLog) CallCount(method string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, call := range c.Calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

// MockTransferRepository is an in-memory TransferRepository
type MockTransferRepository struct {
	callLog
	transfers []entities.Transfer

	// Function hooks for custom behavior
	InsertFunc      func(ctx context.Context, transfer *entities.Transfer) error
	BatchInsertFunc func(ctx context.Context, transfers []entities.Transfer) error
}

func NewMockTransferRepository() *MockTransferRepository {
	return &MockTransferRepository{transfers: make([]entities.Transfer, 0)}
}

func (m *MockTransferRepository) Insert(ctx context.Context, transfer *entities.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Insert", transfer)

	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, transfer)
	}

	t := *transfer
	t.ID = int64(len(m.transfers) + 1)
	m.transfers = append(m.transfers, t)
	return nil
}

func (m *MockTransferRepository) BatchInsert(ctx context.Context, transfers []entities.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("BatchInsert", transfers)

	if m.BatchInsertFunc != nil {
		return m.BatchInsertFunc(ctx, transfers)
	}

	m.transfers = append(m.transfers, transfers...)
	return nil
}

// All returns every stored transfer in insertion order
func (m *MockTransferRepository) All() []entities.Transfer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.Transfer, len(m.transfers))
	copy(out, m.transfers)
	return out
}

// MockRewardRepository is an in-memory RewardRepository
type MockRewardRepository struct {
	callLog
	rewards []entities.Reward

	InsertFunc func(ctx context.Context, reward *entities.Reward) error
}

func NewMockRewardRepository() *MockRewardRepository {
	return &MockRewardRepository{rewards: make([]entities.Reward, 0)}
}

func (m *MockRewardRepository) Insert(ctx context.Context, reward *entities.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Insert", reward)

	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, reward)
	}

	m.rewards = append(m.rewards, *reward)
	return nil
}

func (m *MockRewardRepository) BatchInsert(ctx context.Context, rewards []entities.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("BatchInsert", rewards)

	m.rewards = append(m.rewards, rewards...)
	return nil
}

// All returns every stored reward in insertion order
func (m *MockRewardRepository) All() []entities.Reward {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.Reward, len(m.rewards))
	copy(out, m.rewards)
	return out
}

// MockTokenRepository is an in-memory TokenRepository keyed by symbol
type MockTokenRepository struct {
	callLog
	tokens map[string]entities.Token
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{tokens: make(map[string]entities.Token)}
}

func (m *MockTokenRepository) GetBySymbol(ctx context.Context, symbol string) (*entities.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetBySymbol", symbol)

	t, ok := m.tokens[symbol]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MockTokenRepository) Upsert(ctx context.Context, token *entities.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Upsert", token)

	m.tokens[token.Symbol] = *token
	return nil
}

func (m *MockTokenRepository) BatchUpsert(ctx context.Context, tokens []entities.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("BatchUpsert", tokens)

	for _, t := range tokens {
		m.tokens[t.Symbol] = t
	}
	return nil
}

// MockBalanceRepository is an in-memory BalanceRepository
type MockBalanceRepository struct {
	callLog
	balances map[string]entities.Balance
}

func NewMockBalanceRepository() *MockBalanceRepository {
	return &MockBalanceRepository{balances: make(map[string]entities.Balance)}
}

func (m *MockBalanceRepository) Get(ctx context.Context, name string) (*entities.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Get", name)

	b, ok := m.balances[name]
	if !ok {
		return nil, nil
	}
	b.Balances = append(entities.BalanceEntries(nil), b.Balances...)
	return &b, nil
}

func (m *MockBalanceRepository) Upsert(ctx context.Context, balance *entities.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Upsert", balance)

	m.put(*balance)
	return nil
}

func (m *MockBalanceRepository) BatchUpsert(ctx context.Context, balances []entities.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("BatchUpsert", balances)

	for _, b := range balances {
		m.put(b)
	}
	return nil
}

func (m *MockBalanceRepository) put(b entities.Balance) {
	b.Balances = append(entities.BalanceEntries(nil), b.Balances...)
	m.balances[b.Name] = b
}

// Count returns the number of stored accounts
func (m *MockBalanceRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.balances)
}

// MockVestingRepository is an in-memory VestingRepository
type MockVestingRepository struct {
	callLog
	stats    map[string]entities.VestingStat
	balances map[string]entities.VestingBalance
	params   *entities.VestingParams
	changes  []entities.VestingChange

	GetStatFunc func(ctx context.Context, symbol string) (*entities.VestingStat, error)
}

func NewMockVestingRepository() *MockVestingRepository {
	return &MockVestingRepository{
		stats:    make(map[string]entities.VestingStat),
		balances: make(map[string]entities.VestingBalance),
	}
}

func (m *MockVestingRepository) GetStat(ctx context.Context, symbol string) (*entities.VestingStat, error) {
	m.mu.Lock()
	m.record("GetStat", symbol)
	m.mu.Unlock()

	if m.GetStatFunc != nil {
		return m.GetStatFunc(ctx, symbol)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[symbol]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockVestingRepository) UpsertStat(ctx context.Context, stat *entities.VestingStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpsertStat", stat)

	m.stats[stat.Symbol] = *stat
	return nil
}

func (m *MockVestingRepository) GetBalance(ctx context.Context, account string) (*entities.VestingBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetBalance", account)

	b, ok := m.balances[account]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MockVestingRepository) UpsertBalance(ctx context.Context, balance *entities.VestingBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpsertBalance", balance)

	m.balances[balance.Account] = *balance
	return nil
}

func (m *MockVestingRepository) BatchUpsertBalances(ctx context.Context, balances []entities.VestingBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("BatchUpsertBalances", balances)

	for _, b := range balances {
		m.balances[b.Account] = b
	}
	return nil
}

func (m *MockVestingRepository) GetParams(ctx context.Context) (*entities.VestingParams, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetParams")

	if m.params == nil {
		return nil, nil
	}
	p := *m.params
	return &p, nil
}

func (m *MockVestingRepository) UpsertParams(ctx context.Context, params *entities.VestingParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpsertParams", params)

	p := *params
	m.params = &p
	return nil
}

func (m *MockVestingRepository) InsertChange(ctx context.Context, change *entities.VestingChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("InsertChange", change)

	change.ID = int64(len(m.changes) + 1)
	m.changes = append(m.changes, *change)
	return nil
}

// Changes returns the recorded vesting change rows
func (m *MockVestingRepository) Changes() []entities.VestingChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.VestingChange, len(m.changes))
	copy(out, m.changes)
	return out
}

// MockDelegationRepository is an in-memory DelegationRepository
type MockDelegationRepository struct {
	callLog
	rows []entities.Delegation
}

func NewMockDelegationRepository() *MockDelegationRepository {
	return &MockDelegationRepository{rows: make([]entities.Delegation, 0)}
}

func (m *MockDelegationRepository) GetActive(ctx context.Context, from, to string) (*entities.Delegation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetActive", from, to)

	for _, d := range m.rows {
		if d.From == from && d.To == to && d.IsActual {
			out := d
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MockDelegationRepository) Create(ctx context.Context, delegation *entities.Delegation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create", delegation)

	for _, d := range m.rows {
		if delegation.IsActual && d.IsActual && d.From == delegation.From && d.To == delegation.To {
			return errors.New("duplicate active delegation")
		}
	}

	delegation.ID = int64(len(m.rows) + 1)
	delegation.CreatedAt = time.Now()
	delegation.UpdatedAt = delegation.CreatedAt
	m.rows = append(m.rows, *delegation)
	return nil
}

func (m *MockDelegationRepository) Update(ctx context.Context, delegation *entities.Delegation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Update", delegation)

	for i := range m.rows {
		if m.rows[i].ID == delegation.ID {
			m.rows[i] = *delegation
			return nil
		}
	}
	return errors.New("delegation not found")
}

// All returns every delegation row, active or closed
func (m *MockDelegationRepository) All() []entities.Delegation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.Delegation, len(m.rows))
	copy(out, m.rows)
	return out
}

// MockProposalRepository is an in-memory ProposalRepository
type MockProposalRepository struct {
	callLog
	proposals map[[2]string]entities.DelegateVestingProposal
}

func NewMockProposalRepository() *MockProposalRepository {
	return &MockProposalRepository{proposals: make(map[[2]string]entities.DelegateVestingProposal)}
}

func (m *MockProposalRepository) Get(ctx context.Context, proposer, proposalID string) (*entities.DelegateVestingProposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Get", proposer, proposalID)

	p, ok := m.proposals[[2]string{proposer, proposalID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MockProposalRepository) Upsert(ctx context.Context, proposal *entities.DelegateVestingProposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Upsert", proposal)

	m.proposals[[2]string{proposal.Proposer, proposal.ProposalID}] = *proposal
	return nil
}

func (m *MockProposalRepository) SetSignedByAuthor(ctx context.Context, proposer, proposalID string, signed bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetSignedByAuthor", proposer, proposalID, signed)

	key := [2]string{proposer, proposalID}
	p, ok := m.proposals[key]
	if !ok {
		return false, nil
	}
	p.IsSignedByAuthor = signed
	m.proposals[key] = p
	return true, nil
}

func (m *MockProposalRepository) Delete(ctx context.Context, proposer, proposalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Delete", proposer, proposalID)

	delete(m.proposals, [2]string{proposer, proposalID})
	return nil
}

// MockWithdrawalRepository is an in-memory WithdrawalRepository
type MockWithdrawalRepository struct {
	callLog
	withdrawals map[string]entities.Withdrawal
}

func NewMockWithdrawalRepository() *MockWithdrawalRepository {
	return &MockWithdrawalRepository{withdrawals: make(map[string]entities.Withdrawal)}
}

func (m *MockWithdrawalRepository) Get(ctx context.Context, owner string) (*entities.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Get", owner)

	w, ok := m.withdrawals[owner]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *MockWithdrawalRepository) Upsert(ctx context.Context, withdrawal *entities.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Upsert", withdrawal)

	if withdrawal.RemainingPayments < 0 {
		return errors.New("remaining_payments must not be negative")
	}
	m.withdrawals[withdrawal.Owner] = *withdrawal
	return nil
}

func (m *MockWithdrawalRepository) Delete(ctx context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Delete", owner)

	delete(m.withdrawals, owner)
	return nil
}

// MockUserMetaRepository is an in-memory UserMetaRepository with merge semantics
type MockUserMetaRepository struct {
	callLog
	metas map[string]entities.UserMeta
}

func NewMockUserMetaRepository() *MockUserMetaRepository {
	return &MockUserMetaRepository{metas: make(map[string]entities.UserMeta)}
}

func (m *MockUserMetaRepository) Get(ctx context.Context, userID string) (*entities.UserMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Get", userID)

	meta, ok := m.metas[userID]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (m *MockUserMetaRepository) Upsert(ctx context.Context, meta *entities.UserMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Upsert", meta)

	m.merge(*meta)
	return nil
}

func (m *MockUserMetaRepository) BatchUpsert(ctx context.Context, metas []entities.UserMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("BatchUpsert", metas)

	for _, meta := range metas {
		m.merge(meta)
	}
	return nil
}

func (m *MockUserMetaRepository) merge(meta entities.UserMeta) {
	stored := m.metas[meta.UserID]
	stored.UserID = meta.UserID
	if meta.Username != "" {
		stored.Username = meta.Username
	}
	if meta.Name != "" {
		stored.Name = meta.Name
	}
	m.metas[meta.UserID] = stored
}

// MockServiceMetaRepository is an in-memory ServiceMetaRepository
type MockServiceMetaRepository struct {
	callLog
	meta *entities.ServiceMeta

	GetFunc             func(ctx context.Context) (*entities.ServiceMeta, error)
	UpdateLastBlockFunc func(ctx context.Context, sequence int64, blockTime time.Time) error

	// onReset is set by MockStore to clear its sibling repositories
	onReset func()
}

func NewMockServiceMetaRepository() *MockServiceMetaRepository {
	return &MockServiceMetaRepository{}
}

func (m *MockServiceMetaRepository) Get(ctx context.Context) (*entities.ServiceMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Get")

	if m.GetFunc != nil {
		return m.GetFunc(ctx)
	}
	if m.meta == nil {
		return nil, nil
	}
	meta := *m.meta
	return &meta, nil
}

func (m *MockServiceMetaRepository) Upsert(ctx context.Context, meta *entities.ServiceMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Upsert", meta)

	stored := *meta
	m.meta = &stored
	return nil
}

func (m *MockServiceMetaRepository) SetGenesisApplied(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetGenesisApplied")

	if m.meta == nil {
		m.meta = &entities.ServiceMeta{}
	}
	m.meta.IsGenesisApplied = true
	return nil
}

func (m *MockServiceMetaRepository) UpdateLastBlock(ctx context.Context, sequence int64, blockTime time.Time) error {
	m.mu.Lock()
	m.record("UpdateLastBlock", sequence, blockTime)
	m.mu.Unlock()

	if m.UpdateLastBlockFunc != nil {
		return m.UpdateLastBlockFunc(ctx, sequence, blockTime)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.meta == nil {
		m.meta = &entities.ServiceMeta{}
	}
	bt := blockTime
	m.meta.LastSequence = sequence
	m.meta.LastBlockTime = &bt
	return nil
}

func (m *MockServiceMetaRepository) ResetDerived(ctx context.Context) error {
	m.mu.Lock()
	m.record("ResetDerived")
	reset := m.onReset
	m.mu.Unlock()

	if reset != nil {
		reset()
	}
	return nil
}

// MockStore holds one in-memory repository per entity
type MockStore struct {
	Transfers   *MockTransferRepository
	Rewards     *MockRewardRepository
	Tokens      *MockTokenRepository
	Balances    *MockBalanceRepository
	Vesting     *MockVestingRepository
	Delegations *MockDelegationRepository
	Proposals   *MockProposalRepository
	Withdrawals *MockWithdrawalRepository
	UserMetas   *MockUserMetaRepository
	ServiceMeta *MockServiceMetaRepository

	txMu      sync.Mutex
	TxCalls   int
	Rollbacks int
}

func NewMockStore() *MockStore {
	s := &MockStore{
		Transfers:   NewMockTransferRepository(),
		Rewards:     NewMockRewardRepository(),
		Tokens:      NewMockTokenRepository(),
		Balances:    NewMockBalanceRepository(),
		Vesting:     NewMockVestingRepository(),
		Delegations: NewMockDelegationRepository(),
		Proposals:   NewMockProposalRepository(),
		Withdrawals: NewMockWithdrawalRepository(),
		UserMetas:   NewMockUserMetaRepository(),
		ServiceMeta: NewMockServiceMetaRepository(),
	}
	s.ServiceMeta.onReset = s.resetDerived
	return s
}

// Store exposes the mocks through the repository interfaces
func (s *MockStore) Store() repositories.Store {
	return repositories.Store{
		Transfers:   s.Transfers,
		Rewards:     s.Rewards,
		Tokens:      s.Tokens,
		Balances:    s.Balances,
		Vesting:     s.Vesting,
		Delegations: s.Delegations,
		Proposals:   s.Proposals,
		Withdrawals: s.Withdrawals,
		UserMetas:   s.UserMetas,
		ServiceMeta: s.ServiceMeta,
	}
}

var _ repositories.Transactor = (*MockStore)(nil)

// InTx runs fn against the in-memory repositories and restores their
// previous contents when fn fails, mirroring a rolled back transaction.
func (s *MockStore) InTx(ctx context.Context, fn func(ctx context.Context, store repositories.Store) error) error {
	s.txMu.Lock()
	s.TxCalls++
	s.txMu.Unlock()

	restore := s.snapshot()
	if err := fn(ctx, s.Store()); err != nil {
		restore()
		s.txMu.Lock()
		s.Rollbacks++
		s.txMu.Unlock()
		return err
	}
	return nil
}

func (s *MockStore) snapshot() func() {
	restores := []func(){
		s.Transfers.snapshot(),
		s.Rewards.snapshot(),
		s.Tokens.snapshot(),
		s.Balances.snapshot(),
		s.Vesting.snapshot(),
		s.Delegations.snapshot(),
		s.Proposals.snapshot(),
		s.Withdrawals.snapshot(),
		s.UserMetas.snapshot(),
		s.ServiceMeta.snapshot(),
	}
	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}

// resetDerived empties every repository except the checkpoint
func (s *MockStore) resetDerived() {
	s.Transfers.locked(func() { s.Transfers.transfers = nil })
	s.Rewards.locked(func() { s.Rewards.rewards = nil })
	s.Tokens.locked(func() { s.Tokens.tokens = make(map[string]entities.Token) })
	s.Balances.locked(func() { s.Balances.balances = make(map[string]entities.Balance) })
	s.Vesting.locked(func() {
		s.Vesting.stats = make(map[string]entities.VestingStat)
		s.Vesting.balances = make(map[string]entities.VestingBalance)
		s.Vesting.params = nil
		s.Vesting.changes = nil
	})
	s.Delegations.locked(func() { s.Delegations.rows = nil })
	s.Proposals.locked(func() { s.Proposals.proposals = make(map[[2]string]entities.DelegateVestingProposal) })
	s.Withdrawals.locked(func() { s.Withdrawals.withdrawals = make(map[string]entities.Withdrawal) })
	s.UserMetas.locked(func() { s.UserMetas.metas = make(map[string]entities.UserMeta) })
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Healthy bool
	Error   error
	Calls   []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})
	m.mu.Unlock()

	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Healthy = healthy
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}

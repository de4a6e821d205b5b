package token

// SeedBalance is a test helper that credits an account directly when using the
// in-memory service. The mint supply grows by the same amount.
func SeedBalance(s Service, accountID string, amount uint64) {
	if mem, ok := s.(*inMemoryService); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acct, ok := mem.accounts[accountID]
		if !ok {
			return
		}
		acct.Balance += amount
		if m, ok := mem.mints[acct.Mint]; ok {
			m.Supply += amount
		}
	}
}

package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// LoginDedupTTL covers one reward day plus time zone slack
	LoginDedupTTL = 26 * time.Hour

	// LoginMaxAge bounds how late a login may be reported; older logins earn nothing
	LoginMaxAge = 24 * time.Hour

	// EventClockSkew is how far in the future an earning event may be stamped
	EventClockSkew = 5 * time.Minute

	// DrawTimeout bounds one draw, settlement and payout included
	DrawTimeout = 3 * DefaultTransactionTimeout

	// DrawResultTTL is how long settled draw results stay cached
	DrawResultTTL = 7 * 24 * time.Hour

	// listPageSize is the keyset page size used by lazy ledger iteration
	listPageSize = 200
)

// Cache key builders
func drawResultCacheKey(roundID string) string {
	return "draw:" + roundID
}

// Package settle reduces a set of net balances to the minimum number
// of payer-to-payee transactions that zero every balance.
package settle

import (
	"github.com/shopspring/decimal"

	"tripsplit-backend/internal/domain"
)

// Epsilon is one minor currency unit. Balances within it of zero are
// treated as settled.
var Epsilon = decimal.New(1, -2)

type party struct {
	userID  int32
	balance decimal.Decimal
}

// Optimize produces the minimal transaction list for the given
// balances by repeatedly matching the largest debtor against the
// largest creditor; every transaction fully clears at least one of the
// two. Ties on the extreme balance break toward the smaller user id,
// so identical inputs always produce identical output.
func Optimize(balances []domain.MemberBalance) []domain.SettlementTransaction {
	var debtors, creditors []party
	for _, b := range balances {
		switch {
		case b.NetBalance.LessThan(Epsilon.Neg()):
			debtors = append(debtors, party{userID: b.UserID, balance: b.NetBalance.Neg()})
		case b.NetBalance.GreaterThan(Epsilon):
			creditors = append(creditors, party{userID: b.UserID, balance: b.NetBalance})
		}
	}

	var transactions []domain.SettlementTransaction
	for len(debtors) > 0 && len(creditors) > 0 {
		di := extremeIndex(debtors)
		ci := extremeIndex(creditors)
		debtor := &debtors[di]
		creditor := &creditors[ci]

		amount := debtor.balance
		if creditor.balance.LessThan(amount) {
			amount = creditor.balance
		}

		transactions = append(transactions, domain.SettlementTransaction{
			FromUserID: debtor.userID,
			ToUserID:   creditor.userID,
			Amount:     amount,
		})

		debtor.balance = debtor.balance.Sub(amount)
		creditor.balance = creditor.balance.Sub(amount)

		// Residuals within Epsilon are settled, matching the entry
		// filter above, so a leftover cent never becomes its own
		// transaction.
		if debtor.balance.LessThanOrEqual(Epsilon) {
			debtors = append(debtors[:di], debtors[di+1:]...)
		}
		if creditor.balance.LessThanOrEqual(Epsilon) {
			creditors = append(creditors[:ci], creditors[ci+1:]...)
		}
	}

	return transactions
}

// extremeIndex returns the index of the party with the largest
// outstanding amount, preferring the smaller user id on ties.
func extremeIndex(parties []party) int {
	best := 0
	for i := 1; i < len(parties); i++ {
		cmp := parties[i].balance.Cmp(parties[best].balance)
		if cmp > 0 || (cmp == 0 && parties[i].userID < parties[best].userID) {
			best = i
		}
	}
	return best
}

// Validate recomputes the balances after applying transactions and
// fails if any residual exceeds Epsilon. It is a correctness
// self-check: optimizer output is verified, not trusted.
func Validate(balances []domain.MemberBalance, transactions []domain.SettlementTransaction) error {
	residual := make(map[int32]decimal.Decimal, len(balances))
	for _, b := range balances {
		residual[b.UserID] = b.NetBalance
	}
	for _, tx := range transactions {
		residual[tx.FromUserID] = residual[tx.FromUserID].Add(tx.Amount)
		residual[tx.ToUserID] = residual[tx.ToUserID].Sub(tx.Amount)
	}

	for userID, r := range residual {
		if r.Abs().GreaterThan(Epsilon) {
			return domain.NewInconsistencyError(
				"settlement plan leaves user %d with residual balance %s", userID, r.StringFixed(2),
			)
		}
	}
	return nil
}

// StatsOf summarizes a transaction list.
func StatsOf(transactions []domain.SettlementTransaction) domain.SettlementStats {
	stats := domain.SettlementStats{
		TransactionCount: len(transactions),
		TotalAmount:      decimal.Zero,
		AverageAmount:    decimal.Zero,
	}

	users := make(map[int32]struct{})
	for _, tx := range transactions {
		stats.TotalAmount = stats.TotalAmount.Add(tx.Amount)
		users[tx.FromUserID] = struct{}{}
		users[tx.ToUserID] = struct{}{}
	}
	stats.UsersInvolved = len(users)
	if len(transactions) > 0 {
		stats.AverageAmount = stats.TotalAmount.DivRound(decimal.NewFromInt(int64(len(transactions))), 2)
	}
	return stats
}

// RecommendationsFor returns the optimized transactions where the user
// is payer or payee, for showing a member only their own suggested
// payments.
func RecommendationsFor(balances []domain.MemberBalance, userID int32) []domain.SettlementTransaction {
	var mine []domain.SettlementTransaction
	for _, tx := range Optimize(balances) {
		if tx.FromUserID == userID || tx.ToUserID == userID {
			mine = append(mine, tx)
		}
	}
	return mine
}

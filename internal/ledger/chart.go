package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ConsolidatedBalance is an on-demand rollup of an account subtree. It is
// never persisted; storing it alongside the direct balances would invite
// staleness and double counting.
type ConsolidatedBalance struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
	Net    decimal.Decimal
}

// ChartIndex holds the flat account set of one organization with a children
// index built by scanning parent ids. Accounts never hold live references to
// each other, which keeps ancestry checks trivial.
type ChartIndex struct {
	accounts map[int64]Account
	children map[int64][]int64
}

// NewChartIndex builds the index, rejecting unknown parents and cycles.
func NewChartIndex(accounts []Account) (*ChartIndex, error) {
	idx := &ChartIndex{
		accounts: make(map[int64]Account, len(accounts)),
		children: make(map[int64][]int64),
	}
	for _, a := range accounts {
		if _, dup := idx.accounts[a.ID]; dup {
			return nil, fmt.Errorf("ledger: duplicate account id %d in chart", a.ID)
		}
		idx.accounts[a.ID] = a
	}
	for _, a := range accounts {
		if a.ParentID == nil {
			continue
		}
		parent := *a.ParentID
		if _, ok := idx.accounts[parent]; !ok {
			return nil, fmt.Errorf("ledger: account %d references unknown parent %d", a.ID, parent)
		}
		idx.children[parent] = append(idx.children[parent], a.ID)
	}
	// Deterministic child order keeps traversal stable even though sums are
	// order-independent.
	for parent := range idx.children {
		ids := idx.children[parent]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	for _, a := range accounts {
		if idx.isAncestorOrSelf(a.ID, a.ParentID) {
			return nil, fmt.Errorf("%w: account %d", ErrAccountCycle, a.ID)
		}
	}
	return idx, nil
}

// Account returns a chart node by id.
func (c *ChartIndex) Account(id int64) (Account, bool) {
	a, ok := c.accounts[id]
	return a, ok
}

// Children returns the ids of an account's direct children.
func (c *ChartIndex) Children(id int64) []int64 {
	return c.children[id]
}

// isAncestorOrSelf walks the parent chain from start looking for target.
func (c *ChartIndex) isAncestorOrSelf(target int64, start *int64) bool {
	seen := make(map[int64]bool)
	for cursor := start; cursor != nil; {
		id := *cursor
		if id == target {
			return true
		}
		if seen[id] {
			// Pre-existing cycle elsewhere in the chain; report it as one.
			return true
		}
		seen[id] = true
		parent, ok := c.accounts[id]
		if !ok {
			return false
		}
		cursor = parent.ParentID
	}
	return false
}

// WouldCycle reports whether assigning parentID to accountID would make the
// account its own ancestor.
func (c *ChartIndex) WouldCycle(accountID int64, parentID *int64) bool {
	return c.isAncestorOrSelf(accountID, parentID)
}

// ConsolidatedDebit returns the account's own debit balance for a leaf, or
// the recursive sum over children for a grouping account. Direct balances on
// a grouping account are deliberately ignored so its own postings are never
// combined with the children's rollup.
func (c *ChartIndex) ConsolidatedDebit(id int64) decimal.Decimal {
	kids := c.children[id]
	if len(kids) == 0 {
		if a, ok := c.accounts[id]; ok {
			return a.DebitBalance
		}
		return decimal.Zero
	}
	total := decimal.Zero
	for _, child := range kids {
		total = total.Add(c.ConsolidatedDebit(child))
	}
	return total
}

// ConsolidatedCredit mirrors ConsolidatedDebit for the credit side.
func (c *ChartIndex) ConsolidatedCredit(id int64) decimal.Decimal {
	kids := c.children[id]
	if len(kids) == 0 {
		if a, ok := c.accounts[id]; ok {
			return a.CreditBalance
		}
		return decimal.Zero
	}
	total := decimal.Zero
	for _, child := range kids {
		total = total.Add(c.ConsolidatedCredit(child))
	}
	return total
}

// Consolidated computes debit, credit, and net in one pass over the subtree.
func (c *ChartIndex) Consolidated(id int64) (ConsolidatedBalance, error) {
	if _, ok := c.accounts[id]; !ok {
		return ConsolidatedBalance{}, ErrAccountNotFound
	}
	debit := c.ConsolidatedDebit(id)
	credit := c.ConsolidatedCredit(id)
	return ConsolidatedBalance{
		Debit:  debit,
		Credit: credit,
		Net:    debit.Sub(credit),
	}, nil
}

package approval

import (
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
)

// Strategy folds an expense's approval rows into the expense status.
type Strategy interface {
	Name() string
	Aggregate(rows []*approvalDatamodel.ExpenseApproval) string
}

type tally struct {
	total    int
	approved int
	rejected int
	pending  int
}

func count(rows []*approvalDatamodel.ExpenseApproval) tally {
	var t tally
	for _, r := range rows {
		if r.IsOverride() {
			continue
		}
		t.total++
		switch r.Status {
		case approvalDatamodel.StatusApproved:
			t.approved++
		case approvalDatamodel.StatusRejected:
			t.rejected++
		default:
			t.pending++
		}
	}
	return t
}

// UnanimousVeto rejects on any rejection and approves once every row approved.
type UnanimousVeto struct{}

func (UnanimousVeto) Name() string { return "unanimous_veto" }

func (UnanimousVeto) Aggregate(rows []*approvalDatamodel.ExpenseApproval) string {
	t := count(rows)
	switch {
	case t.total == 0:
		return expenseDatamodel.StatusPending
	case t.rejected > 0:
		return expenseDatamodel.StatusRejected
	case t.approved == t.total:
		return expenseDatamodel.StatusApproved
	default:
		return expenseDatamodel.StatusPending
	}
}

// PercentageThreshold approves once Percent of the rows approved, and rejects
// as soon as the threshold can no longer be reached.
type PercentageThreshold struct {
	Percent int
}

func (PercentageThreshold) Name() string { return "percentage_threshold" }

func (s PercentageThreshold) Aggregate(rows []*approvalDatamodel.ExpenseApproval) string {
	t := count(rows)
	if t.total == 0 {
		return expenseDatamodel.StatusPending
	}
	if s.reached(t.approved, t.total) {
		return expenseDatamodel.StatusApproved
	}
	if !s.reached(t.approved+t.pending, t.total) {
		return expenseDatamodel.StatusRejected
	}
	return expenseDatamodel.StatusPending
}

func (s PercentageThreshold) reached(approved, total int) bool {
	return approved*100 >= s.Percent*total
}

// SpecificApprover approves as soon as ApproverID approved, otherwise it
// behaves like UnanimousVeto.
type SpecificApprover struct {
	ApproverID int64
}

func (SpecificApprover) Name() string { return "specific_approver" }

func (s SpecificApprover) Aggregate(rows []*approvalDatamodel.ExpenseApproval) string {
	if s.approvedBy(rows) {
		return expenseDatamodel.StatusApproved
	}
	return UnanimousVeto{}.Aggregate(rows)
}

func (s SpecificApprover) approvedBy(rows []*approvalDatamodel.ExpenseApproval) bool {
	for _, r := range rows {
		if !r.IsOverride() && r.ApproverID == s.ApproverID && r.Status == approvalDatamodel.StatusApproved {
			return true
		}
	}
	return false
}

// Hybrid approves when either the specific approver or the percentage
// threshold is satisfied.
type Hybrid struct {
	Percent    int
	ApproverID int64
}

func (Hybrid) Name() string { return "hybrid" }

func (s Hybrid) Aggregate(rows []*approvalDatamodel.ExpenseApproval) string {
	if (SpecificApprover{ApproverID: s.ApproverID}).approvedBy(rows) {
		return expenseDatamodel.StatusApproved
	}
	return PercentageThreshold{Percent: s.Percent}.Aggregate(rows)
}

// StrategyFor maps a configured rule onto its strategy. Nil, inactive or
// incomplete rules fall back to UnanimousVeto.
func StrategyFor(rule *approvalDatamodel.Rule) Strategy {
	if rule == nil || !rule.IsActive {
		return UnanimousVeto{}
	}

	switch rule.RuleType {
	case approvalDatamodel.RuleTypePercentage:
		if rule.PercentageThreshold != nil {
			return PercentageThreshold{Percent: *rule.PercentageThreshold}
		}
	case approvalDatamodel.RuleTypeSpecific:
		if rule.SpecificApproverID != nil {
			return SpecificApprover{ApproverID: *rule.SpecificApproverID}
		}
	case approvalDatamodel.RuleTypeHybrid:
		if rule.PercentageThreshold != nil && rule.SpecificApproverID != nil {
			return Hybrid{Percent: *rule.PercentageThreshold, ApproverID: *rule.SpecificApproverID}
		}
	}
	return UnanimousVeto{}
}

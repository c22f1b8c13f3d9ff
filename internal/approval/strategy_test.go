package approval

import (
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func rowsWith(statuses ...string) []*approvalDatamodel.ExpenseApproval {
	rows := make([]*approvalDatamodel.ExpenseApproval, len(statuses))
	for i, s := range statuses {
		rows[i] = &approvalDatamodel.ExpenseApproval{
			ID:         int64(i + 1),
			ApproverID: int64(100 + i),
			StepOrder:  i + 1,
			Status:     s,
		}
	}
	return rows
}

var _ = ginkgo.Describe("UnanimousVeto", func() {
	const (
		P = approvalDatamodel.StatusPending
		A = approvalDatamodel.StatusApproved
		R = approvalDatamodel.StatusRejected
	)
	strategy := UnanimousVeto{}

	ginkgo.It("should stay pending without rows", func() {
		gomega.Expect(strategy.Aggregate(nil)).To(gomega.Equal(expenseDatamodel.StatusPending))
	})

	ginkgo.It("should approve iff every row approved, for any N", func() {
		for n := 1; n <= 6; n++ {
			statuses := make([]string, n)
			for i := range statuses {
				statuses[i] = A
			}
			gomega.Expect(strategy.Aggregate(rowsWith(statuses...))).To(gomega.Equal(expenseDatamodel.StatusApproved), "n=%d", n)

			for hole := 0; hole < n; hole++ {
				partial := append([]string(nil), statuses...)
				partial[hole] = P
				gomega.Expect(strategy.Aggregate(rowsWith(partial...))).To(gomega.Equal(expenseDatamodel.StatusPending), "n=%d hole=%d", n, hole)
			}
		}
	})

	ginkgo.It("should reject on any rejection regardless of the other rows", func() {
		gomega.Expect(strategy.Aggregate(rowsWith(R))).To(gomega.Equal(expenseDatamodel.StatusRejected))
		gomega.Expect(strategy.Aggregate(rowsWith(A, A, R))).To(gomega.Equal(expenseDatamodel.StatusRejected))
		gomega.Expect(strategy.Aggregate(rowsWith(P, R, P))).To(gomega.Equal(expenseDatamodel.StatusRejected))
	})

	ginkgo.It("should ignore override records", func() {
		rows := rowsWith(A)
		rows = append(rows, &approvalDatamodel.ExpenseApproval{StepOrder: approvalDatamodel.OverrideStepOrder, Status: R})
		gomega.Expect(strategy.Aggregate(rows)).To(gomega.Equal(expenseDatamodel.StatusApproved))
	})
})

var _ = ginkgo.Describe("PercentageThreshold", func() {
	const (
		P = approvalDatamodel.StatusPending
		A = approvalDatamodel.StatusApproved
		R = approvalDatamodel.StatusRejected
	)
	strategy := PercentageThreshold{Percent: 60}

	ginkgo.It("should approve once the threshold is met", func() {
		gomega.Expect(strategy.Aggregate(rowsWith(A, A, A, P, P))).To(gomega.Equal(expenseDatamodel.StatusApproved))
	})

	ginkgo.It("should stay pending while the threshold is reachable", func() {
		gomega.Expect(strategy.Aggregate(rowsWith(A, R, P, P, P))).To(gomega.Equal(expenseDatamodel.StatusPending))
	})

	ginkgo.It("should reject once the threshold is out of reach", func() {
		gomega.Expect(strategy.Aggregate(rowsWith(A, R, R, P, P))).To(gomega.Equal(expenseDatamodel.StatusPending))
		gomega.Expect(strategy.Aggregate(rowsWith(A, R, R, R, P))).To(gomega.Equal(expenseDatamodel.StatusRejected))
	})
})

var _ = ginkgo.Describe("SpecificApprover and Hybrid", func() {
	const (
		P = approvalDatamodel.StatusPending
		A = approvalDatamodel.StatusApproved
		R = approvalDatamodel.StatusRejected
	)

	ginkgo.It("should approve as soon as the named approver approved", func() {
		rows := rowsWith(P, A, P)
		gomega.Expect(SpecificApprover{ApproverID: 101}.Aggregate(rows)).To(gomega.Equal(expenseDatamodel.StatusApproved))
		gomega.Expect(SpecificApprover{ApproverID: 100}.Aggregate(rows)).To(gomega.Equal(expenseDatamodel.StatusPending))
	})

	ginkgo.It("hybrid should accept either condition", func() {
		gomega.Expect(Hybrid{Percent: 100, ApproverID: 102}.Aggregate(rowsWith(R, P, A))).To(gomega.Equal(expenseDatamodel.StatusApproved))
		gomega.Expect(Hybrid{Percent: 50, ApproverID: 999}.Aggregate(rowsWith(A, A, P, R))).To(gomega.Equal(expenseDatamodel.StatusApproved))
	})
})

var _ = ginkgo.Describe("StrategyFor", func() {
	pct := 75
	approver := int64(9)

	ginkgo.It("should default to unanimous veto", func() {
		gomega.Expect(StrategyFor(nil)).To(gomega.Equal(UnanimousVeto{}))
		gomega.Expect(StrategyFor(&approvalDatamodel.Rule{RuleType: approvalDatamodel.RuleTypePercentage, PercentageThreshold: &pct})).
			To(gomega.Equal(UnanimousVeto{}), "inactive rule")
		gomega.Expect(StrategyFor(&approvalDatamodel.Rule{RuleType: approvalDatamodel.RuleTypeHybrid, PercentageThreshold: &pct, IsActive: true})).
			To(gomega.Equal(UnanimousVeto{}), "incomplete hybrid")
	})

	ginkgo.It("should map active rules to their strategies", func() {
		gomega.Expect(StrategyFor(&approvalDatamodel.Rule{IsActive: true, RuleType: approvalDatamodel.RuleTypePercentage, PercentageThreshold: &pct})).
			To(gomega.Equal(PercentageThreshold{Percent: 75}))
		gomega.Expect(StrategyFor(&approvalDatamodel.Rule{IsActive: true, RuleType: approvalDatamodel.RuleTypeSpecific, SpecificApproverID: &approver})).
			To(gomega.Equal(SpecificApprover{ApproverID: 9}))
		gomega.Expect(StrategyFor(&approvalDatamodel.Rule{IsActive: true, RuleType: approvalDatamodel.RuleTypeHybrid, PercentageThreshold: &pct, SpecificApproverID: &approver})).
			To(gomega.Equal(Hybrid{Percent: 75, ApproverID: 9}))
	})
})

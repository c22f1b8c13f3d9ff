package approval

import "time"

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"

	// OverrideStepOrder marks an approval row written by an admin override.
	OverrideStepOrder = 999
)

const (
	RuleTypePercentage = "PERCENTAGE"
	RuleTypeSpecific   = "SPECIFIC_APPROVER"
	RuleTypeHybrid     = "HYBRID"
)

// Flow is one configured step of a company's approval sequence.
type Flow struct {
	ID                int64     `gorm:"primaryKey"`
	CompanyID         int64     `gorm:"column:company_id;not null;index"`
	StepOrder         int       `gorm:"column:step_order;not null"`
	ApproverRole      *string   `gorm:"column:approver_role"`
	SpecificUserID    *int64    `gorm:"column:specific_user_id"`
	IsManagerApprover bool      `gorm:"column:is_manager_approver;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Flow) TableName() string {
	return "approval_flows"
}

type Rule struct {
	ID                  int64     `gorm:"primaryKey"`
	CompanyID           int64     `gorm:"column:company_id;not null;index"`
	Name                string    `gorm:"column:name;not null"`
	RuleType            string    `gorm:"column:rule_type;not null"`
	PercentageThreshold *int      `gorm:"column:percentage_threshold"`
	SpecificApproverID  *int64    `gorm:"column:specific_approver_id"`
	IsActive            bool      `gorm:"column:is_active;not null"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Rule) TableName() string {
	return "approval_rules"
}

// ExpenseApproval is one approver's decision slot for an expense. Workflow rows
// are unique per (expense, approver); override rows are exempt.
type ExpenseApproval struct {
	ID         int64      `gorm:"primaryKey"`
	ExpenseID  int64      `gorm:"column:expense_id;not null;index;uniqueIndex:idx_expense_approvals_workflow,where:step_order <> 999"`
	ApproverID int64      `gorm:"column:approver_id;not null;index;uniqueIndex:idx_expense_approvals_workflow,where:step_order <> 999"`
	StepOrder  int        `gorm:"column:step_order;not null"`
	Status     string     `gorm:"column:status;not null;default:PENDING"`
	Comments   *string    `gorm:"column:comments"`
	ApprovedAt *time.Time `gorm:"column:approved_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (ExpenseApproval) TableName() string {
	return "expense_approvals"
}

func (a *ExpenseApproval) IsOverride() bool {
	return a.StepOrder == OverrideStepOrder
}

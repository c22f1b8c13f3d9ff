package approval

import (
	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
)

// DecisionDTO is the body of POST /approvals/{expenseId}/approve.
type DecisionDTO struct {
	Status   string  `json:"status"`
	Comments *string `json:"comments,omitempty"`
}

func (dto DecisionDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("status", dto.Status).
		Required().
		OneOf(internal.ErrCodeInvalidDecision, approvalDatamodel.StatusApproved, approvalDatamodel.StatusRejected)
	v.Field("comments", derefString(dto.Comments)).
		MaxLength(1000)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// OverrideDTO is the body of PATCH /expenses/{id}/override-approval.
type OverrideDTO struct {
	Status   string  `json:"status"`
	Comments *string `json:"comments,omitempty"`
}

func (dto OverrideDTO) Validate() error {
	return DecisionDTO(dto).Validate()
}

type CreateFlowDTO struct {
	StepOrder         int     `json:"step_order"`
	ApproverRole      *string `json:"approver_role,omitempty"`
	SpecificUserID    *int64  `json:"specific_user_id,omitempty"`
	IsManagerApprover bool    `json:"is_manager_approver"`
}

func (dto CreateFlowDTO) Validate() error {
	return validateStep(dto.StepOrder, dto.ApproverRole, dto.SpecificUserID, dto.IsManagerApprover)
}

// UpdateFlowDTO replaces the approver selection of a step. Omitted
// step_order keeps the current value.
type UpdateFlowDTO struct {
	StepOrder         *int    `json:"step_order,omitempty"`
	ApproverRole      *string `json:"approver_role,omitempty"`
	SpecificUserID    *int64  `json:"specific_user_id,omitempty"`
	IsManagerApprover bool    `json:"is_manager_approver"`
}

func (dto UpdateFlowDTO) Validate(current int) error {
	stepOrder := current
	if dto.StepOrder != nil {
		stepOrder = *dto.StepOrder
	}
	return validateStep(stepOrder, dto.ApproverRole, dto.SpecificUserID, dto.IsManagerApprover)
}

// validateStep enforces a positive step order and exactly one selection mode.
func validateStep(stepOrder int, role *string, specificUserID *int64, manager bool) error {
	v := validation.NewValidator()
	v.Field("step_order", int64(stepOrder)).
		MinInt(1, internal.ErrCodeInvalidFlowStep).
		MaxInt(approvalDatamodel.OverrideStepOrder-1, internal.ErrCodeInvalidFlowStep)
	if role != nil {
		v.Field("approver_role", *role).
			OneOf(internal.ErrCodeInvalidRole, userDatamodel.RoleAdmin, userDatamodel.RoleManager, userDatamodel.RoleEmployee)
	}
	if err := v.Validate(); err != nil {
		return err
	}

	modes := 0
	if manager {
		modes++
	}
	if specificUserID != nil {
		modes++
	}
	if role != nil && *role != "" {
		modes++
	}
	if modes != 1 {
		return internal.NewValidationFieldError("approver",
			"exactly one of approver_role, specific_user_id or is_manager_approver must be set",
			internal.ErrCodeInvalidFlowStep)
	}
	return nil
}

type CreateRuleDTO struct {
	Name                string `json:"name"`
	RuleType            string `json:"rule_type"`
	PercentageThreshold *int   `json:"percentage_threshold,omitempty"`
	SpecificApproverID  *int64 `json:"specific_approver_id,omitempty"`
	IsActive            *bool  `json:"is_active,omitempty"`
}

func (dto CreateRuleDTO) Validate() error {
	return validateRule(dto.Name, dto.RuleType, dto.PercentageThreshold, dto.SpecificApproverID)
}

type UpdateRuleDTO struct {
	Name                *string `json:"name,omitempty"`
	RuleType            *string `json:"rule_type,omitempty"`
	PercentageThreshold *int    `json:"percentage_threshold,omitempty"`
	SpecificApproverID  *int64  `json:"specific_approver_id,omitempty"`
	IsActive            *bool   `json:"is_active,omitempty"`
}

// Apply merges the update into rule and validates the result.
func (dto UpdateRuleDTO) Apply(rule *approvalDatamodel.Rule) error {
	if dto.Name != nil {
		rule.Name = *dto.Name
	}
	if dto.RuleType != nil {
		rule.RuleType = *dto.RuleType
	}
	if dto.PercentageThreshold != nil {
		rule.PercentageThreshold = dto.PercentageThreshold
	}
	if dto.SpecificApproverID != nil {
		rule.SpecificApproverID = dto.SpecificApproverID
	}
	if dto.IsActive != nil {
		rule.IsActive = *dto.IsActive
	}
	return validateRule(rule.Name, rule.RuleType, rule.PercentageThreshold, rule.SpecificApproverID)
}

func validateRule(name, ruleType string, percentage *int, specificApproverID *int64) error {
	v := validation.NewValidator()
	v.Field("name", name).
		Required().
		MaxLength(255)
	v.Field("rule_type", ruleType).
		Required().
		OneOf(internal.ErrCodeInvalidRule, approvalDatamodel.RuleTypePercentage, approvalDatamodel.RuleTypeSpecific, approvalDatamodel.RuleTypeHybrid)
	if percentage != nil {
		v.Field("percentage_threshold", int64(*percentage)).
			MinInt(1, internal.ErrCodeInvalidRule).
			MaxInt(100, internal.ErrCodeInvalidRule)
	}
	if err := v.Validate(); err != nil {
		return err
	}

	needsPercentage := ruleType == approvalDatamodel.RuleTypePercentage || ruleType == approvalDatamodel.RuleTypeHybrid
	needsApprover := ruleType == approvalDatamodel.RuleTypeSpecific || ruleType == approvalDatamodel.RuleTypeHybrid
	if needsPercentage && percentage == nil {
		return internal.NewValidationFieldError("percentage_threshold", "percentage_threshold is required for "+ruleType, internal.ErrCodeInvalidRule)
	}
	if needsApprover && specificApproverID == nil {
		return internal.NewValidationFieldError("specific_approver_id", "specific_approver_id is required for "+ruleType, internal.ErrCodeInvalidRule)
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package events

const (
	EventTypeUserCreated      = "user.created"
	EventTypeExpenseSubmitted = "expense.submitted"
	EventTypeExpenseResolved  = "expense.resolved"
)

type UserCreatedEvent struct {
	BaseEvent
	UserID            int64  `json:"user_id"`
	CompanyID         int64  `json:"company_id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	TemporaryPassword string `json:"-"`
}

func NewUserCreatedEvent(userID, companyID int64, email, name, temporaryPassword string) *UserCreatedEvent {
	return &UserCreatedEvent{
		BaseEvent:         newBaseEvent(EventTypeUserCreated),
		UserID:            userID,
		CompanyID:         companyID,
		Email:             email,
		Name:              name,
		TemporaryPassword: temporaryPassword,
	}
}

type ExpenseSubmittedEvent struct {
	BaseEvent
	ExpenseID   int64   `json:"expense_id"`
	CompanyID   int64   `json:"company_id"`
	EmployeeID  int64   `json:"employee_id"`
	ApproverIDs []int64 `json:"approver_ids"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
}

func NewExpenseSubmittedEvent(expenseID, companyID, employeeID int64, approverIDs []int64, amount, currency string) *ExpenseSubmittedEvent {
	return &ExpenseSubmittedEvent{
		BaseEvent:   newBaseEvent(EventTypeExpenseSubmitted),
		ExpenseID:   expenseID,
		CompanyID:   companyID,
		EmployeeID:  employeeID,
		ApproverIDs: approverIDs,
		Amount:      amount,
		Currency:    currency,
	}
}

// ExpenseResolvedEvent fires once an expense reaches APPROVED or REJECTED,
// either by aggregation or by an admin override.
type ExpenseResolvedEvent struct {
	BaseEvent
	ExpenseID  int64  `json:"expense_id"`
	EmployeeID int64  `json:"employee_id"`
	Status     string `json:"status"`
	Override   bool   `json:"override"`
}

func NewExpenseResolvedEvent(expenseID, employeeID int64, status string, override bool) *ExpenseResolvedEvent {
	return &ExpenseResolvedEvent{
		BaseEvent:  newBaseEvent(EventTypeExpenseResolved),
		ExpenseID:  expenseID,
		EmployeeID: employeeID,
		Status:     status,
		Override:   override,
	}
}

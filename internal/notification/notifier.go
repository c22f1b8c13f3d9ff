package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/core/events"
)

type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
}

type Subscriber interface {
	Subscribe(eventType string, handler events.Handler)
}

type Notifier struct {
	mailer  Mailer
	users   UserDirectory
	baseURL string
	logger  *slog.Logger
}

func NewNotifier(mailer Mailer, users UserDirectory, baseURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer:  mailer,
		users:   users,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Register subscribes the notifier to the events it mails about. Delivery
// failures are logged and swallowed.
func (n *Notifier) Register(bus Subscriber) {
	bus.Subscribe(events.EventTypeUserCreated, n.quiet(n.OnUserCreated))
	bus.Subscribe(events.EventTypeExpenseSubmitted, n.quiet(n.OnExpenseSubmitted))
	bus.Subscribe(events.EventTypeExpenseResolved, n.quiet(n.OnExpenseResolved))
}

func (n *Notifier) quiet(h events.Handler) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		if err := h(ctx, event); err != nil {
			n.logger.Warn("notification not delivered",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"error", err)
		}
		return nil
	}
}

func (n *Notifier) OnUserCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.UserCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\nYour expense approval account is ready.\n", e.Name)
	fmt.Fprintf(&body, "Sign in with %s", e.Email)
	if e.TemporaryPassword != "" {
		fmt.Fprintf(&body, " and the temporary password %s.\nYou will be asked to change it after signing in.\n", e.TemporaryPassword)
	} else {
		body.WriteString(".\n")
	}
	if n.baseURL != "" {
		fmt.Fprintf(&body, "\n%s\n", n.baseURL)
	}

	return n.mailer.Send(ctx, Message{
		To:      []string{e.Email},
		Subject: "Welcome to Expense Approval",
		Body:    body.String(),
	})
}

func (n *Notifier) OnExpenseSubmitted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.ExpenseSubmittedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event)
	}

	employee := fmt.Sprintf("employee #%d", e.EmployeeID)
	if u, err := n.users.GetByID(ctx, e.EmployeeID); err == nil {
		employee = u.Name
	}

	to := make([]string, 0, len(e.ApproverIDs))
	for _, id := range e.ApproverIDs {
		u, err := n.users.GetByID(ctx, id)
		if err != nil {
			n.logger.Warn("approver lookup failed", "approver_id", id, "error", err)
			continue
		}
		to = append(to, u.Email)
	}
	if len(to) == 0 {
		return nil
	}

	body := fmt.Sprintf("%s submitted expense #%d for %s %s and it awaits your decision.\n",
		employee, e.ExpenseID, e.Amount, e.Currency)
	if n.baseURL != "" {
		body += fmt.Sprintf("\n%s/approvals/pending\n", n.baseURL)
	}

	return n.mailer.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Expense #%d needs your approval", e.ExpenseID),
		Body:    body,
	})
}

func (n *Notifier) OnExpenseResolved(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.ExpenseResolvedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event)
	}

	u, err := n.users.GetByID(ctx, e.EmployeeID)
	if err != nil {
		return fmt.Errorf("employee %d: %w", e.EmployeeID, err)
	}

	status := strings.ToLower(e.Status)
	body := fmt.Sprintf("Hello %s,\n\nYour expense #%d was %s", u.Name, e.ExpenseID, status)
	if e.Override {
		body += " by an administrator"
	}
	body += ".\n"

	return n.mailer.Send(ctx, Message{
		To:      []string{u.Email},
		Subject: fmt.Sprintf("Expense #%d %s", e.ExpenseID, status),
		Body:    body,
	})
}

package notification

import (
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"os"
	"sync"

	"github.com/frahmantamala/expense-approval/internal"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mapDirectory map[int64]*userDatamodel.User

func (d mapDirectory) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, internal.ErrUserNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Notifier", func() {
	var (
		mailer *recordingMailer
		bus    *events.EventBus
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mailer = &recordingMailer{}
		users := mapDirectory{
			1: {ID: 1, Name: "Erin", Email: "erin@acme.test"},
			2: {ID: 2, Name: "Mona", Email: "mona@acme.test"},
			3: {ID: 3, Name: "Ada", Email: "ada@acme.test"},
		}
		bus = events.NewEventBus(testLogger())
		NewNotifier(mailer, users, "https://expenses.acme.test/", testLogger()).Register(bus)
	})

	It("should welcome new users with their temporary password", func() {
		Expect(bus.PublishSync(ctx, events.NewUserCreatedEvent(1, 1, "erin@acme.test", "Erin", "s3cr3t-temp"))).To(Succeed())

		Expect(mailer.sent).To(HaveLen(1))
		Expect(mailer.sent[0].To).To(ConsistOf("erin@acme.test"))
		Expect(mailer.sent[0].Body).To(ContainSubstring("s3cr3t-temp"))
		Expect(mailer.sent[0].Body).To(ContainSubstring("https://expenses.acme.test"))
	})

	It("should tell approvers about a submitted expense", func() {
		event := events.NewExpenseSubmittedEvent(7, 1, 1, []int64{2, 3, 99}, "110", "USD")
		Expect(bus.PublishSync(ctx, event)).To(Succeed())

		Expect(mailer.sent).To(HaveLen(1))
		Expect(mailer.sent[0].To).To(ConsistOf("mona@acme.test", "ada@acme.test"))
		Expect(mailer.sent[0].Body).To(ContainSubstring("Erin submitted expense #7 for 110 USD"))
	})

	It("should tell the employee how an expense was resolved", func() {
		Expect(bus.PublishSync(ctx, events.NewExpenseResolvedEvent(7, 1, "REJECTED", true))).To(Succeed())

		Expect(mailer.sent).To(HaveLen(1))
		Expect(mailer.sent[0].To).To(ConsistOf("erin@acme.test"))
		Expect(mailer.sent[0].Subject).To(Equal("Expense #7 rejected"))
		Expect(mailer.sent[0].Body).To(ContainSubstring("by an administrator"))
	})

	It("should swallow delivery failures", func() {
		mailer.err = errors.New("relay down")
		Expect(bus.PublishSync(ctx, events.NewExpenseResolvedEvent(7, 1, "APPROVED", false))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewExpenseResolvedEvent(8, 404, "APPROVED", false))).To(Succeed())
	})
})

var _ = Describe("SMTPMailer", func() {
	It("should hand a composed message to the relay", func() {
		var (
			gotAddr string
			gotTo   []string
			gotMsg  string
			gotAuth smtp.Auth
		)
		m := NewSMTPMailer(SMTPConfig{Host: "smtp.acme.test", Port: 587, Username: "bot", Password: "pw", From: "no-reply@acme.test"})
		m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
			return nil
		}

		err := m.Send(context.Background(), Message{To: []string{"erin@acme.test"}, Subject: "Hi", Body: "line one\nline two"})

		Expect(err).NotTo(HaveOccurred())
		Expect(gotAddr).To(Equal("smtp.acme.test:587"))
		Expect(gotAuth).NotTo(BeNil())
		Expect(gotTo).To(ConsistOf("erin@acme.test"))
		Expect(gotMsg).To(ContainSubstring("Subject: Hi\r\n"))
		Expect(gotMsg).To(ContainSubstring("<no-reply@acme.test>"))
		Expect(gotMsg).To(HaveSuffix("line one\r\nline two"))
	})

	It("should skip messages without recipients", func() {
		called := false
		m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25})
		m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
			called = true
			return nil
		}

		Expect(m.Send(context.Background(), Message{Subject: "nobody"})).To(Succeed())
		Expect(called).To(BeFalse())
	})

	It("should wrap relay errors", func() {
		m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25})
		m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		}

		err := m.Send(context.Background(), Message{To: []string{"a@b.test"}})
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
	})
})

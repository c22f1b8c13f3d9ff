package ocr_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/ocr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeWorker struct {
	text       string
	err        error
	block      bool
	terminated *int32
}

func (w *fakeWorker) Recognize(ctx context.Context, image []byte) (string, error) {
	if w.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return w.text, w.err
}

func (w *fakeWorker) Terminate() error {
	atomic.AddInt32(w.terminated, 1)
	return nil
}

// orderedWorker lingers after cancellation and records whether Terminate
// arrived before Recognize returned.
type orderedWorker struct {
	returned        *atomic.Bool
	terminatedEarly *atomic.Bool
}

func (w *orderedWorker) Recognize(ctx context.Context, image []byte) (string, error) {
	<-ctx.Done()
	time.Sleep(30 * time.Millisecond)
	w.returned.Store(true)
	return "", ctx.Err()
}

func (w *orderedWorker) Terminate() error {
	if !w.returned.Load() {
		w.terminatedEarly.Store(true)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Service", func() {
	var (
		terminated int32
		worker     *fakeWorker
		svc        *ocr.Service
	)

	BeforeEach(func() {
		terminated = 0
		worker = &fakeWorker{terminated: &terminated}
		factory := func() (ocr.Worker, error) { return worker, nil }
		svc = ocr.NewService(factory, 50*time.Millisecond, nil, testLogger())
	})

	It("should parse the recognized text", func() {
		worker.text = "Cafe Luna\nTotal 12.30\n"

		res := svc.Scan(context.Background(), []byte("img"))

		Expect(res.Success).To(BeTrue())
		Expect(res.Amount.String()).To(Equal("12.3"))
		Expect(atomic.LoadInt32(&terminated)).To(Equal(int32(1)))
	})

	It("should time out and still terminate the worker", func() {
		worker.block = true

		res := svc.Scan(context.Background(), []byte("img"))

		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring("timed out"))
		Eventually(func() int32 { return atomic.LoadInt32(&terminated) }).Should(Equal(int32(1)))
	})

	It("should wait for a canceled recognition before terminating", func() {
		var returned, cleanBeforeReturn atomic.Bool
		slow := &orderedWorker{returned: &returned, terminatedEarly: &cleanBeforeReturn}
		svc = ocr.NewService(func() (ocr.Worker, error) { return slow, nil }, 20*time.Millisecond, nil, testLogger())

		res := svc.Scan(context.Background(), []byte("img"))

		Expect(res.Error).To(ContainSubstring("timed out"))
		Expect(returned.Load()).To(BeTrue())
		Expect(cleanBeforeReturn.Load()).To(BeFalse())
	})

	It("should report caller cancellation separately from timeouts", func() {
		worker.block = true
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := svc.Scan(ctx, []byte("img"))

		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring("canceled"))
		Expect(atomic.LoadInt32(&terminated)).To(Equal(int32(1)))
	})

	It("should report extraction failures as a structured result", func() {
		worker.err = errors.New("bad image")

		res := svc.Scan(context.Background(), []byte("img"))

		Expect(res.Success).To(BeFalse())
		Expect(res.Error).NotTo(BeEmpty())
		Expect(atomic.LoadInt32(&terminated)).To(Equal(int32(1)))
	})

	It("should report an unavailable engine", func() {
		svc = ocr.NewService(func() (ocr.Worker, error) { return nil, errors.New("missing") }, time.Second, nil, testLogger())

		res := svc.Scan(context.Background(), []byte("img"))
		Expect(res.Success).To(BeFalse())
	})

	It("should reject empty images without starting a worker", func() {
		res := svc.Scan(context.Background(), nil)

		Expect(res.Success).To(BeFalse())
		Expect(atomic.LoadInt32(&terminated)).To(Equal(int32(0)))
	})

	Describe("Handler", func() {
		upload := func(field string, withUser bool) *httptest.ResponseRecorder {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			part, err := mw.CreateFormFile(field, "receipt.png")
			Expect(err).NotTo(HaveOccurred())
			_, _ = part.Write([]byte("png-bytes"))
			Expect(mw.Close()).To(Succeed())

			req := httptest.NewRequest(http.MethodPost, "/expenses/ocr", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			if withUser {
				req = req.WithContext(auth.ContextWithUser(req.Context(), &auth.User{ID: 1, CompanyID: 1, Role: "EMPLOYEE"}))
			}
			rec := httptest.NewRecorder()
			ocr.NewHandler(svc, 1<<20).ScanReceipt(rec, req)
			return rec
		}

		It("should return the scan result", func() {
			worker.text = "Cafe Luna\nTotal 12.30\n"

			rec := upload("receipt", true)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"success":true`))
		})

		It("should answer OCR failures with 200 and success false", func() {
			worker.err = errors.New("bad image")

			rec := upload("receipt", true)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"success":false`))
		})

		It("should require the receipt field", func() {
			Expect(upload("file", true).Code).To(Equal(http.StatusBadRequest))
		})

		It("should require authentication", func() {
			Expect(upload("receipt", false).Code).To(Equal(http.StatusUnauthorized))
		})
	})
})

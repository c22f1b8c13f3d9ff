package ocr

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/expense-approval/pkg/metrics"
)

type Service struct {
	newWorker WorkerFactory
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(factory WorkerFactory, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		newWorker: factory,
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

type recognition struct {
	text string
	err  error
}

// cancelGrace bounds how long Scan waits for a canceled worker to return
// before terminating it anyway.
const cancelGrace = 5 * time.Second

// Scan runs one extraction raced against the configured timeout. The worker
// is terminated on every exit path, after Recognize has returned.
func (s *Service) Scan(ctx context.Context, image []byte) *Result {
	start := time.Now()

	if len(image) == 0 {
		s.metrics.OCRScan("invalid", start)
		return failed("receipt image is empty")
	}

	worker, err := s.newWorker()
	if err != nil {
		s.logger.Error("failed to start ocr worker", "error", err)
		s.metrics.OCRScan("unavailable", start)
		return failed("OCR engine is unavailable")
	}
	defer func() {
		if err := worker.Terminate(); err != nil {
			s.logger.Warn("failed to terminate ocr worker", "error", err)
		}
	}()

	text, err := s.recognize(ctx, worker, image)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return s.aborted(err, start)
	case err != nil:
		s.logger.Warn("ocr scan failed", "error", err)
		s.metrics.OCRScan("error", start)
		return failed("could not read text from the receipt")
	case strings.TrimSpace(text) == "":
		s.metrics.OCRScan("empty", start)
		return failed("no text found on the receipt")
	}

	res := Parse(text)
	s.metrics.OCRScan("success", start)
	s.logger.Info("ocr scan completed",
		"duration", time.Since(start),
		"amount_found", res.Amount != nil,
		"date_found", res.Date != nil)
	return res
}

func (s *Service) recognize(parent context.Context, worker Worker, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	done := make(chan recognition, 1)
	go func() {
		text, err := worker.Recognize(ctx, image)
		done <- recognition{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return r.text, r.err

	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(cancelGrace):
			s.logger.Error("ocr worker ignored cancellation", "grace", cancelGrace)
		}
		return "", ctx.Err()
	}
}

func (s *Service) aborted(err error, start time.Time) *Result {
	outcome, message := "canceled", "OCR processing was canceled"
	if errors.Is(err, context.DeadlineExceeded) {
		outcome, message = "timeout", "OCR processing timed out"
	}
	s.logger.Warn("ocr scan aborted", "outcome", outcome, "timeout", s.timeout)
	s.metrics.OCRScan(outcome, start)
	return failed(message)
}

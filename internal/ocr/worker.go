package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// waitDelay bounds how long Recognize waits for output pipes after the
// tesseract process has been killed.
const waitDelay = time.Second

// Worker extracts text from one receipt image. Recognize must return soon
// after ctx is done. Terminate releases whatever the worker holds, runs only
// after Recognize returned, and is safe to call more than once.
type Worker interface {
	Recognize(ctx context.Context, image []byte) (string, error)
	Terminate() error
}

// WorkerFactory builds a fresh worker for each scan.
type WorkerFactory func() (Worker, error)

// TesseractWorker shells out to the tesseract CLI. The process is bound to
// the Recognize context and is killed when it is done.
type TesseractWorker struct {
	command  string
	language string

	mu     sync.Mutex
	tmpDir string
}

func NewTesseractFactory(command, language string) WorkerFactory {
	return func() (Worker, error) {
		if _, err := exec.LookPath(command); err != nil {
			return nil, fmt.Errorf("ocr engine %q not available: %w", command, err)
		}
		dir, err := os.MkdirTemp("", "receipt-ocr-")
		if err != nil {
			return nil, fmt.Errorf("create ocr workspace: %w", err)
		}
		return &TesseractWorker{command: command, language: language, tmpDir: dir}, nil
	}
}

func (w *TesseractWorker) workspace() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tmpDir == "" {
		return "", fmt.Errorf("ocr worker already terminated")
	}
	return w.tmpDir, nil
}

func (w *TesseractWorker) Recognize(ctx context.Context, image []byte) (string, error) {
	dir, err := w.workspace()
	if err != nil {
		return "", err
	}

	input := filepath.Join(dir, "receipt")
	if err := os.WriteFile(input, image, 0o600); err != nil {
		return "", fmt.Errorf("write receipt image: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.command, input, "stdout", "-l", w.language)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%s failed: %w: %s", w.command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Terminate removes the workspace.
func (w *TesseractWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tmpDir == "" {
		return nil
	}
	err := os.RemoveAll(w.tmpDir)
	w.tmpDir = ""
	return err
}

package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
)

// Typed OCR failures. Any of them stops the pipeline before the LLM stage.
var (
	ErrInvalidImage     = errors.New("ocr: invalid image")
	ErrProcessingFailed = errors.New("ocr: processing failed")
	ErrNoTextFound      = errors.New("ocr: no text found")
)

// TextExtractor turns receipt image bytes into raw text.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string
	PSM           int           // e.g., 6 is good for uniform block of text; 0 = tesseract default
	Timeout       time.Duration // per image; 0 = caller's context only
}

// Extractor runs tesseract on a temporary copy of the image.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// ExtractText validates the image, runs OCR and returns normalized text with
// recognized lines joined by "\n".
func (e *Extractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	start := time.Now()
	log := common.LoggerWithRequest(ctx, e.logger)

	format, err := ValidateImage(image)
	if err != nil {
		log.Warn("ocr.image.invalid", "bytes", len(image), "error", err)
		return "", err
	}

	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	path, cleanup, err := writeTemp(image, format)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}
	defer cleanup()

	raw, err := e.tesseract(ctx, path)
	if err != nil {
		log.Error("ocr.extract.failed", "format", format, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	text := Normalize(raw)
	if text == "" {
		log.Warn("ocr.extract.no_text", "format", format, "elapsed_ms", time.Since(start).Milliseconds())
		return "", ErrNoTextFound
	}

	log.Info("ocr.extract.ok",
		"format", format,
		"lang", e.cfg.TesseractLang,
		"chars", len(text),
		"lines", strings.Count(text, "\n")+1,
		"confidence", HeuristicConfidence(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("%w: tesseract: %v: %s", ErrProcessingFailed, err, truncate(string(errb), 512))
	}
	// minor cleanup of obvious line noise
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

func writeTemp(image []byte, format string) (string, func(), error) {
	f, err := os.CreateTemp("", "canteen-ocr-*."+format)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}

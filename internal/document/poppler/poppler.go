// Package poppler is a PDF engine that drives the poppler command line
// utilities (pdfinfo, pdftoppm, pdftotext). Each call runs under the
// caller's context, so cancelling a render kills the child process.
package poppler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dshills/docview/internal/document"
)

// ErrToolMissing is returned when a poppler utility is not on PATH.
var ErrToolMissing = errors.New("poppler utilities not found")

// Config names the utilities to run.
type Config struct {
	PDFInfo   string
	PDFToPPM  string
	PDFToText string
}

// DefaultConfig looks the tools up on PATH.
func DefaultConfig() Config {
	return Config{PDFInfo: "pdfinfo", PDFToPPM: "pdftoppm", PDFToText: "pdftotext"}
}

// Engine implements document.Engine for PDF files.
type Engine struct {
	cfg Config
}

// New creates a poppler engine.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.PDFInfo == "" {
		cfg.PDFInfo = def.PDFInfo
	}
	if cfg.PDFToPPM == "" {
		cfg.PDFToPPM = def.PDFToPPM
	}
	if cfg.PDFToText == "" {
		cfg.PDFToText = def.PDFToText
	}
	return &Engine{cfg: cfg}
}

// Name implements document.Engine.
func (e *Engine) Name() string { return "poppler" }

type handle struct {
	path   string
	pages  []document.PageDescriptor
	closed atomic.Bool

	mu    sync.Mutex
	words map[int][]word
}

func (h *handle) Path() string                     { return h.path }
func (h *handle) PageCount() int                   { return len(h.pages) }
func (h *handle) Pages() []document.PageDescriptor { return h.pages }

func (h *handle) Close() error {
	h.closed.Store(true)
	h.mu.Lock()
	h.words = nil
	h.mu.Unlock()
	return nil
}

func (e *Engine) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrToolMissing)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Open implements document.Engine.
func (e *Engine) Open(ctx context.Context, path string) (document.Handle, error) {
	out, err := e.run(ctx, e.cfg.PDFInfo, "-f", "1", "-l", strconv.Itoa(math.MaxInt32), path)
	if err != nil {
		return nil, document.NewError(document.KindFatalOpen, "open", path, err)
	}
	pages, err := parseInfo(bytes.NewReader(out))
	if err != nil {
		return nil, document.NewError(document.KindFatalOpen, "open", path, err)
	}
	return &handle{path: path, pages: pages, words: make(map[int][]word)}, nil
}

func lookup(h document.Handle, page int) (*handle, error) {
	ph, ok := h.(*handle)
	if !ok {
		return nil, fmt.Errorf("poppler: foreign handle %T", h)
	}
	if ph.closed.Load() {
		return nil, document.ErrClosed
	}
	if page < 0 || page >= len(ph.pages) {
		return nil, document.ErrPageRange
	}
	return ph, nil
}

// rasterArgs computes pdftoppm arguments that scale the page so crop fills
// width x height, then cut out the crop.
func rasterArgs(desc document.PageDescriptor, width, height int, crop document.Rect) []string {
	if crop.Empty() {
		crop = desc.Bounds()
	}
	sx := float64(width) / crop.Width()
	sy := float64(height) / crop.Height()
	fullW := int(math.Round(desc.Width * sx))
	fullH := int(math.Round(desc.Height * sy))
	page := strconv.Itoa(desc.Index + 1)
	return []string{
		"-f", page, "-l", page,
		"-scale-to-x", strconv.Itoa(fullW),
		"-scale-to-y", strconv.Itoa(fullH),
		"-x", strconv.Itoa(int(math.Round(crop.X0 * sx))),
		"-y", strconv.Itoa(int(math.Round(crop.Y0 * sy))),
		"-W", strconv.Itoa(width),
		"-H", strconv.Itoa(height),
		"-png", "-singlefile",
	}
}

// Rasterize implements document.Engine.
func (e *Engine) Rasterize(ctx context.Context, h document.Handle, page, width, height int, crop document.Rect, ct document.ColorTransform) (*image.RGBA, error) {
	ph, err := lookup(h, page)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	args := append(rasterArgs(ph.pages[page], width, height, crop), ph.path)
	out, err := e.run(ctx, e.cfg.PDFToPPM, args...)
	if err != nil {
		return nil, err
	}
	src, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	img, ok := src.(*image.RGBA)
	if !ok {
		img = image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
		draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
	}
	ct.Apply(img)
	return img, nil
}

// FindText implements document.Engine. Word boxes are extracted once per
// page and kept on the handle.
func (e *Engine) FindText(ctx context.Context, h document.Handle, page int, query string) ([]document.Rect, error) {
	ph, err := lookup(h, page)
	if err != nil {
		return nil, err
	}
	ph.mu.Lock()
	words, ok := ph.words[page]
	ph.mu.Unlock()
	if !ok {
		p := strconv.Itoa(page + 1)
		out, err := e.run(ctx, e.cfg.PDFToText, "-f", p, "-l", p, "-bbox", ph.path, "-")
		if err != nil {
			return nil, err
		}
		words, err = parseBBox(bytes.NewReader(out))
		if err != nil {
			return nil, err
		}
		ph.mu.Lock()
		if ph.words != nil {
			ph.words[page] = words
		}
		ph.mu.Unlock()
	}
	return matchWords(words, query), nil
}

var _ document.Engine = (*Engine)(nil)

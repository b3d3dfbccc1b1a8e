// Package textdoc is a document engine for plain UTF-8 text files. Text is
// wrapped and split into fixed-size pages which are drawn with a bitmap font.
package textdoc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"

	"github.com/dshills/docview/internal/document"
)

const (
	glyphWidth  = 7
	glyphHeight = 13
	margin      = 14
	tabWidth    = 4
)

// Config controls pagination.
type Config struct {
	Columns int
	Lines   int
}

// DefaultConfig returns an 80x60 page.
func DefaultConfig() Config {
	return Config{Columns: 80, Lines: 60}
}

// Engine implements document.Engine for text files.
type Engine struct {
	cfg Config

	rasterized atomic.Uint64
	searched   atomic.Uint64
}

// New creates a text engine.
func New(cfg Config) *Engine {
	if cfg.Columns <= 0 {
		cfg.Columns = DefaultConfig().Columns
	}
	if cfg.Lines <= 0 {
		cfg.Lines = DefaultConfig().Lines
	}
	return &Engine{cfg: cfg}
}

// Name implements document.Engine.
func (e *Engine) Name() string { return "text" }

// Rasterized returns the number of completed Rasterize calls.
func (e *Engine) Rasterized() uint64 { return e.rasterized.Load() }

// Searched returns the number of completed FindText calls.
func (e *Engine) Searched() uint64 { return e.searched.Load() }

type handle struct {
	path   string
	pages  [][]string
	descs  []document.PageDescriptor
	closed atomic.Bool
}

func (h *handle) Path() string                     { return h.path }
func (h *handle) PageCount() int                   { return len(h.pages) }
func (h *handle) Pages() []document.PageDescriptor { return h.descs }

func (h *handle) Close() error {
	h.closed.Store(true)
	return nil
}

// Open implements document.Engine.
func (e *Engine) Open(ctx context.Context, path string) (document.Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, document.NewError(document.KindTransientIO, "open", path, err)
	}
	if !utf8.Valid(data) {
		return nil, document.NewError(document.KindFatalOpen, "open", path, errors.New("not valid UTF-8 text"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := e.wrap(string(data))
	h := &handle{path: path}
	for start := 0; start < len(lines) || start == 0; start += e.cfg.Lines {
		end := min(start+e.cfg.Lines, len(lines))
		h.pages = append(h.pages, lines[start:end])
		if end == len(lines) {
			break
		}
	}

	w := float64(e.cfg.Columns*glyphWidth + 2*margin)
	ht := float64(e.cfg.Lines*glyphHeight + 2*margin)
	for i := range h.pages {
		h.descs = append(h.descs, document.PageDescriptor{Index: i, Width: w, Height: ht})
	}
	return h, nil
}

func (e *Engine) wrap(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.ReplaceAll(line, "\t", strings.Repeat(" ", tabWidth))
		runes := []rune(line)
		for len(runes) > e.cfg.Columns {
			out = append(out, string(runes[:e.cfg.Columns]))
			runes = runes[e.cfg.Columns:]
		}
		out = append(out, string(runes))
	}
	return out
}

func lookup(h document.Handle, page int) (*handle, []string, error) {
	th, ok := h.(*handle)
	if !ok {
		return nil, nil, fmt.Errorf("textdoc: foreign handle %T", h)
	}
	if th.closed.Load() {
		return nil, nil, document.ErrClosed
	}
	if page < 0 || page >= len(th.pages) {
		return nil, nil, document.ErrPageRange
	}
	return th, th.pages[page], nil
}

// Rasterize implements document.Engine.
func (e *Engine) Rasterize(ctx context.Context, h document.Handle, page, width, height int, crop document.Rect, ct document.ColorTransform) (*image.RGBA, error) {
	th, lines, err := lookup(h, page)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	desc := th.descs[page]
	native := image.NewRGBA(image.Rect(0, 0, int(desc.Width), int(desc.Height)))
	xdraw.Draw(native, native.Bounds(), image.White, image.Point{}, xdraw.Src)
	d := &font.Drawer{Dst: native, Src: image.NewUniform(color.Black), Face: basicfont.Face7x13}
	for i, line := range lines {
		if i%16 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		d.Dot = fixed.P(margin, margin+(i+1)*glyphHeight-basicfont.Face7x13.Descent)
		d.DrawString(line)
	}

	if crop.Empty() {
		crop = desc.Bounds()
	}
	src := image.Rect(
		int(math.Floor(crop.X0)), int(math.Floor(crop.Y0)),
		int(math.Ceil(crop.X1)), int(math.Ceil(crop.Y1)),
	).Intersect(native.Bounds())
	if src.Empty() {
		return nil, fmt.Errorf("crop %v outside page", crop)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(out, out.Bounds(), native, src, xdraw.Src, nil)
	ct.Apply(out)
	e.rasterized.Add(1)
	return out, nil
}

// FindText implements document.Engine. Matching is case-insensitive using
// Unicode case folding and never spans lines.
func (e *Engine) FindText(ctx context.Context, h document.Handle, page int, query string) ([]document.Rect, error) {
	_, lines, err := lookup(h, page)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return nil, nil
	}
	fold := cases.Fold()
	needle := []rune(fold.String(query))

	var out []document.Rect
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		folded, cols := foldRunes(fold, line)
		for start := 0; start+len(needle) <= len(folded); {
			if !runesEqual(folded[start:start+len(needle)], needle) {
				start++
				continue
			}
			c0 := cols[start]
			c1 := cols[start+len(needle)-1] + 1
			y := float64(margin + i*glyphHeight)
			out = append(out, document.Rect{
				X0: float64(margin + c0*glyphWidth),
				Y0: y,
				X1: float64(margin + c1*glyphWidth),
				Y1: y + glyphHeight,
			})
			start += len(needle)
		}
	}
	e.searched.Add(1)
	return out, nil
}

// foldRunes folds s rune by rune, returning the folded runes and, for each,
// the column of the source rune it came from.
func foldRunes(fold cases.Caser, s string) ([]rune, []int) {
	var runes []rune
	var cols []int
	col := 0
	for _, r := range s {
		for _, f := range fold.String(string(r)) {
			runes = append(runes, f)
			cols = append(cols, col)
		}
		col++
	}
	return runes, cols
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ document.Engine = (*Engine)(nil)

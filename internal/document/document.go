// Package document defines the contract between the viewer and a document
// engine, plus the versioned document session built on top of it.
package document

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"time"
)

// Handle is an opened document. It is shared read-only by all workers for
// the lifetime of one version.
type Handle interface {
	Path() string
	PageCount() int
	Pages() []PageDescriptor
	Close() error
}

// Engine decodes documents. Implementations must be safe for concurrent use
// and should honour ctx inside long calls where they can.
type Engine interface {
	Name() string
	Open(ctx context.Context, path string) (Handle, error)
	Rasterize(ctx context.Context, h Handle, page, width, height int, crop Rect, ct ColorTransform) (*image.RGBA, error)
	// FindText returns the boxes of every occurrence of query on page,
	// ordered by position on the page.
	FindText(ctx context.Context, h Handle, page int, query string) ([]Rect, error)
}

// Document is one opened version of a file. It is replaced wholesale on
// reload and never mutated.
type Document struct {
	Handle   Handle
	Engine   Engine
	Version  uint64
	Pages    []PageDescriptor
	OpenedAt time.Time
}

// Open opens path with e and tags the result with version.
func Open(ctx context.Context, e Engine, path string, version uint64) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, classifyStat(path, err)
	}
	h, err := e.Open(ctx, path)
	if err != nil {
		if KindOf(err) != 0 {
			return nil, err
		}
		return nil, NewError(KindFatalOpen, "open", path, err)
	}
	pages := h.Pages()
	if len(pages) == 0 {
		_ = h.Close()
		return nil, NewError(KindFatalOpen, "open", path, errors.New("document has no pages"))
	}
	return &Document{
		Handle:   h,
		Engine:   e,
		Version:  version,
		Pages:    pages,
		OpenedAt: time.Now(),
	}, nil
}

func classifyStat(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return NewError(KindTransientIO, "open", path, err)
	}
	return NewError(KindFatalOpen, "open", path, err)
}

// Path returns the document's file path.
func (d *Document) Path() string { return d.Handle.Path() }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.Pages) }

// Rasterize renders the page described by key.
func (d *Document) Rasterize(ctx context.Context, key RenderKey) (*image.RGBA, error) {
	if key.Version != d.Version {
		return nil, fmt.Errorf("render key version %d, document version %d: %w", key.Version, d.Version, ErrClosed)
	}
	if key.Page < 0 || key.Page >= len(d.Pages) {
		return nil, PageError("rasterize", d.Path(), key.Page, ErrPageRange)
	}
	img, err := d.Engine.Rasterize(ctx, d.Handle, key.Page, key.Width, key.Height, key.Crop, key.Color)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if KindOf(err) == 0 {
			err = PageError("rasterize", d.Path(), key.Page, err)
		}
		return nil, err
	}
	return img, nil
}

// FindText searches one page.
func (d *Document) FindText(ctx context.Context, page int, query string) ([]Rect, error) {
	if page < 0 || page >= len(d.Pages) {
		return nil, PageError("find", d.Path(), page, ErrPageRange)
	}
	rects, err := d.Engine.FindText(ctx, d.Handle, page, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if KindOf(err) == 0 {
			err = PageError("find", d.Path(), page, err)
		}
		return nil, err
	}
	return rects, nil
}

// Close releases the engine handle.
func (d *Document) Close() error {
	return d.Handle.Close()
}

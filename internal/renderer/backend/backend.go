// Package backend provides the terminal abstraction the viewer draws on.
package backend

import (
	"sync"

	"github.com/dshills/docview/internal/renderer/core"
)

// EventType identifies the type of terminal event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventMouse
	EventResize
	// EventInterrupt wakes a blocked PollEvent.
	EventInterrupt
)

// Event is a terminal input event. Only the fields of its Type are set.
type Event struct {
	Type EventType

	Key  Key
	Rune rune

	MouseButton MouseButton

	Width, Height int
}

// Key represents a keyboard key.
type Key int

// Keys the viewer binds. Everything else arrives as KeyNone.
const (
	KeyNone Key = iota
	KeyRune     // printable character in Event.Rune
	KeyEscape
	KeyEnter
	KeyBackspace
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyCtrlC
	KeyCtrlD
	KeyCtrlL
	KeyCtrlU
	KeyCtrlZ
)

// MouseButton is the wheel direction of a mouse event. Clicks are ignored.
type MouseButton int

const (
	MouseNone MouseButton = iota
	MouseWheelUp
	MouseWheelDown
	MouseWheelLeft
	MouseWheelRight
)

// Backend is the terminal the viewer owns for its lifetime.
type Backend interface {
	// Init takes over the terminal. Must be called before any other method.
	Init() error

	// Shutdown restores the terminal.
	Shutdown()

	// Size returns the terminal dimensions in cells.
	Size() (width, height int)

	// CellPixelSize returns the pixel size of one cell, or zeros when the
	// terminal does not report it.
	CellPixelSize() (width, height int)

	// SetCell sets a single cell. Positions outside the terminal are ignored.
	SetCell(x, y int, cell core.Cell)

	// Fill sets every cell of rect that lies on screen.
	Fill(rect core.ScreenRect, cell core.Cell)

	Clear()

	// Show flushes changes to the display.
	Show()

	ShowCursor(x, y int)
	HideCursor()

	// PollEvent blocks for the next event.
	PollEvent() Event

	// PostEvent queues a synthetic event without blocking.
	PostEvent(event Event)

	// Suspend gives the terminal back to the shell until Resume.
	Suspend() error
	Resume() error
}

// NullBackend is an in-memory Backend for tests. Cells are stored row-major.
type NullBackend struct {
	mu            sync.Mutex
	width, height int
	cellW, cellH  int
	grid          []core.Cell

	cursorX, cursorY int
	cursorVisible    bool
	suspended        bool

	events chan Event
}

// NewNullBackend creates a null backend with the given dimensions.
func NewNullBackend(width, height int) *NullBackend {
	return &NullBackend{
		width:  width,
		height: height,
		events: make(chan Event, 100),
	}
}

func (b *NullBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
	return nil
}

func (b *NullBackend) reset() {
	b.grid = make([]core.Cell, b.width*b.height)
	for i := range b.grid {
		b.grid[i] = core.EmptyCell()
	}
}

// index returns the grid offset of (x, y) or -1 when it is off screen.
func (b *NullBackend) index(x, y int) int {
	if x < 0 || x >= b.width || y < 0 || y >= b.height || b.grid == nil {
		return -1
	}
	return y*b.width + x
}

func (b *NullBackend) Shutdown() {}

func (b *NullBackend) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *NullBackend) CellPixelSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cellW, b.cellH
}

// SetCellPixelSize sets the value CellPixelSize reports.
func (b *NullBackend) SetCellPixelSize(w, h int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cellW, b.cellH = w, h
}

func (b *NullBackend) SetCell(x, y int, cell core.Cell) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(x, y); i >= 0 {
		b.grid[i] = cell
	}
}

// Cell returns the cell at (x, y), or an empty cell off screen.
func (b *NullBackend) Cell(x, y int) core.Cell {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(x, y); i >= 0 {
		return b.grid[i]
	}
	return core.EmptyCell()
}

func (b *NullBackend) Fill(rect core.ScreenRect, cell core.Cell) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rect.Intersection(core.RectFromSize(0, 0, b.height, b.width)).Each(func(row, col int) {
		b.grid[b.index(col, row)] = cell
	})
}

func (b *NullBackend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *NullBackend) Show() {}

func (b *NullBackend) ShowCursor(x, y int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursorX, b.cursorY, b.cursorVisible = x, y, true
}

func (b *NullBackend) HideCursor() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursorVisible = false
}

// Cursor returns the cursor position and whether it is shown.
func (b *NullBackend) Cursor() (x, y int, visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursorX, b.cursorY, b.cursorVisible
}

func (b *NullBackend) PollEvent() Event {
	return <-b.events
}

// PostEvent drops the event when the queue is full.
func (b *NullBackend) PostEvent(event Event) {
	select {
	case b.events <- event:
	default:
	}
}

func (b *NullBackend) Suspend() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suspended = true
	return nil
}

func (b *NullBackend) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suspended = false
	return nil
}

// Suspended reports whether Suspend was called without a matching Resume.
func (b *NullBackend) Suspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspended
}

// Row returns the runes of row y as a string.
func (b *NullBackend) Row(y int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index(0, y) < 0 {
		return ""
	}
	rs := make([]rune, b.width)
	for x, c := range b.grid[y*b.width : (y+1)*b.width] {
		rs[x] = c.Rune
	}
	return string(rs)
}

// Resize simulates a terminal resize and queues the resize event.
func (b *NullBackend) Resize(width, height int) {
	b.mu.Lock()
	b.width, b.height = width, height
	b.reset()
	b.mu.Unlock()
	b.PostEvent(Event{Type: EventResize, Width: width, Height: height})
}

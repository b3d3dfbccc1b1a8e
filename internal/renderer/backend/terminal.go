package backend

import (
	"os"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/docview/internal/renderer/core"
)

// Terminal implements Backend on a tcell screen. tcell diffs cells on Show,
// so the viewer redraws whole frames without tracking damage itself.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
}

// NewTerminal creates a terminal backend. The screen is not touched until Init.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{screen: screen}, nil
}

// with runs fn holding the screen lock.
func (t *Terminal) with(fn func(s tcell.Screen)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.screen)
}

func (t *Terminal) Init() (err error) {
	t.with(func(s tcell.Screen) {
		if err = s.Init(); err != nil {
			return
		}
		// Wheel events only; clicks and motion are not bound.
		s.EnableMouse(tcell.MouseButtonEvents)
		s.HideCursor()
	})
	return err
}

func (t *Terminal) Shutdown() {
	t.with(func(s tcell.Screen) { s.Fini() })
}

func (t *Terminal) Size() (w, h int) {
	t.with(func(s tcell.Screen) { w, h = s.Size() })
	return w, h
}

func (t *Terminal) CellPixelSize() (int, int) {
	return cellPixelSize(int(os.Stdout.Fd()))
}

func (t *Terminal) SetCell(x, y int, cell core.Cell) {
	style := tcellStyle(cell.Style)
	t.with(func(s tcell.Screen) { s.SetContent(x, y, cell.Rune, nil, style) })
}

func (t *Terminal) Fill(rect core.ScreenRect, cell core.Cell) {
	style := tcellStyle(cell.Style)
	t.with(func(s tcell.Screen) {
		w, h := s.Size()
		rect.Intersection(core.RectFromSize(0, 0, h, w)).Each(func(row, col int) {
			s.SetContent(col, row, cell.Rune, nil, style)
		})
	})
}

func (t *Terminal) Clear() {
	t.with(func(s tcell.Screen) { s.Clear() })
}

func (t *Terminal) Show() {
	t.with(func(s tcell.Screen) { s.Show() })
}

func (t *Terminal) ShowCursor(x, y int) {
	t.with(func(s tcell.Screen) { s.ShowCursor(x, y) })
}

func (t *Terminal) HideCursor() {
	t.with(func(s tcell.Screen) { s.HideCursor() })
}

// PollEvent blocks until the next event. It returns EventNone once the
// screen has been finalized. It does not take the lock: tcell's queue is
// safe for concurrent use and Fini must be able to wake it.
func (t *Terminal) PollEvent() Event {
	ev := t.screen.PollEvent()
	if ev == nil {
		return Event{Type: EventNone}
	}
	return fromTcell(ev)
}

func (t *Terminal) PostEvent(event Event) {
	var ev tcell.Event
	switch event.Type {
	case EventKey:
		ev = tcell.NewEventKey(toTcellKey(event.Key), event.Rune, tcell.ModNone)
	case EventInterrupt:
		ev = tcell.NewEventInterrupt(nil)
	default:
		return
	}
	// A full queue drops the event.
	_ = t.screen.PostEvent(ev)
}

func (t *Terminal) Suspend() (err error) {
	t.with(func(s tcell.Screen) { err = s.Suspend() })
	return err
}

func (t *Terminal) Resume() (err error) {
	t.with(func(s tcell.Screen) { err = s.Resume() })
	return err
}

func tcellColor(c core.Color) tcell.Color {
	if c.Default {
		return tcell.ColorDefault
	}
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

func tcellStyle(s core.Style) tcell.Style {
	return tcell.StyleDefault.
		Foreground(tcellColor(s.Foreground)).
		Background(tcellColor(s.Background)).
		Bold(s.Bold).
		Reverse(s.Reverse)
}

func fromTcell(ev tcell.Event) Event {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return Event{Type: EventKey, Key: fromTcellKey(e.Key()), Rune: e.Rune()}
	case *tcell.EventMouse:
		if b := wheel(e.Buttons()); b != MouseNone {
			return Event{Type: EventMouse, MouseButton: b}
		}
		return Event{Type: EventNone}
	case *tcell.EventResize:
		w, h := e.Size()
		return Event{Type: EventResize, Width: w, Height: h}
	case *tcell.EventInterrupt:
		return Event{Type: EventInterrupt}
	}
	return Event{Type: EventNone}
}

// tcellKeys pairs each bound key with its tcell code. The first entry for a
// key is the one PostEvent sends.
var tcellKeys = []struct {
	tk  tcell.Key
	key Key
}{
	{tcell.KeyRune, KeyRune},
	{tcell.KeyEscape, KeyEscape},
	{tcell.KeyEnter, KeyEnter},
	{tcell.KeyBackspace2, KeyBackspace},
	{tcell.KeyBackspace, KeyBackspace},
	{tcell.KeyHome, KeyHome},
	{tcell.KeyEnd, KeyEnd},
	{tcell.KeyPgUp, KeyPageUp},
	{tcell.KeyPgDn, KeyPageDown},
	{tcell.KeyUp, KeyUp},
	{tcell.KeyDown, KeyDown},
	{tcell.KeyLeft, KeyLeft},
	{tcell.KeyRight, KeyRight},
	{tcell.KeyCtrlC, KeyCtrlC},
	{tcell.KeyCtrlD, KeyCtrlD},
	{tcell.KeyCtrlL, KeyCtrlL},
	{tcell.KeyCtrlU, KeyCtrlU},
	{tcell.KeyCtrlZ, KeyCtrlZ},
}

func fromTcellKey(tk tcell.Key) Key {
	for _, k := range tcellKeys {
		if k.tk == tk {
			return k.key
		}
	}
	return KeyNone
}

func toTcellKey(key Key) tcell.Key {
	for _, k := range tcellKeys {
		if k.key == key {
			return k.tk
		}
	}
	return tcell.KeyRune
}

func wheel(b tcell.ButtonMask) MouseButton {
	switch {
	case b&tcell.WheelUp != 0:
		return MouseWheelUp
	case b&tcell.WheelDown != 0:
		return MouseWheelDown
	case b&tcell.WheelLeft != 0:
		return MouseWheelLeft
	case b&tcell.WheelRight != 0:
		return MouseWheelRight
	}
	return MouseNone
}

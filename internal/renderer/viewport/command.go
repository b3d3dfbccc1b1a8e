package viewport

import (
	"fmt"

	"github.com/dshills/docview/internal/document"
)

// CommandKind identifies a viewport command.
type CommandKind int

const (
	CmdScroll CommandKind = iota + 1
	CmdScrollScreen
	CmdZoomIn
	CmdZoomOut
	CmdZoomReset
	CmdPan
	CmdSetFitMode
	CmdGotoPage
	CmdSetDirection
	CmdSetMaxAcross
	CmdToggleInvert
	CmdSetColor
)

var commandNames = map[CommandKind]string{
	CmdScroll:       "scroll",
	CmdScrollScreen: "scroll-screen",
	CmdZoomIn:       "zoom-in",
	CmdZoomOut:      "zoom-out",
	CmdZoomReset:    "zoom-reset",
	CmdPan:          "pan",
	CmdSetFitMode:   "set-fit-mode",
	CmdGotoPage:     "goto-page",
	CmdSetDirection: "set-direction",
	CmdSetMaxAcross: "set-max-across",
	CmdToggleInvert: "toggle-invert",
	CmdSetColor:     "set-color",
}

func (k CommandKind) String() string {
	if s, ok := commandNames[k]; ok {
		return s
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Command is an abstract viewer action. Only the fields relevant to Kind
// are read.
type Command struct {
	Kind      CommandKind
	Delta     int
	DX, DY    int
	Page      int
	Fit       FitMode
	Direction document.ReadingDirection
	Color     document.ColorTransform
}

func (c Command) String() string {
	switch c.Kind {
	case CmdScroll, CmdScrollScreen, CmdSetMaxAcross:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Delta)
	case CmdPan:
		return fmt.Sprintf("pan(%d,%d)", c.DX, c.DY)
	case CmdGotoPage:
		return fmt.Sprintf("goto-page(%d)", c.Page)
	case CmdSetFitMode:
		return fmt.Sprintf("set-fit-mode(%s)", c.Fit)
	case CmdSetDirection:
		return fmt.Sprintf("set-direction(%s)", c.Direction)
	}
	return c.Kind.String()
}

// Scroll moves by delta pages.
func Scroll(delta int) Command { return Command{Kind: CmdScroll, Delta: delta} }

// ScrollScreen moves by delta screens worth of pages.
func ScrollScreen(delta int) Command { return Command{Kind: CmdScrollScreen, Delta: delta} }

// ZoomIn multiplies the zoom factor by the zoom step.
func ZoomIn() Command { return Command{Kind: CmdZoomIn} }

// ZoomOut divides the zoom factor by the zoom step.
func ZoomOut() Command { return Command{Kind: CmdZoomOut} }

// ZoomReset restores 100% zoom and clears the pan offset.
func ZoomReset() Command { return Command{Kind: CmdZoomReset} }

// Pan moves the pan offset by (dx, dy) cells.
func Pan(dx, dy int) Command { return Command{Kind: CmdPan, DX: dx, DY: dy} }

// SetFitMode selects a fit mode.
func SetFitMode(m FitMode) Command { return Command{Kind: CmdSetFitMode, Fit: m} }

// GotoPage jumps to a zero-based page.
func GotoPage(page int) Command { return Command{Kind: CmdGotoPage, Page: page} }

// SetDirection sets the reading direction.
func SetDirection(d document.ReadingDirection) Command {
	return Command{Kind: CmdSetDirection, Direction: d}
}

// SetMaxAcross limits the pages per row; 0 means unlimited.
func SetMaxAcross(n int) Command { return Command{Kind: CmdSetMaxAcross, Delta: n} }

// ToggleInvert flips between normal and inverted colors.
func ToggleInvert() Command { return Command{Kind: CmdToggleInvert} }

// SetColor sets the color transform.
func SetColor(ct document.ColorTransform) Command { return Command{Kind: CmdSetColor, Color: ct} }

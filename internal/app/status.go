package app

import (
	"fmt"
	"path/filepath"

	"github.com/mattn/go-runewidth"

	"github.com/dshills/docview/internal/renderer/core"
)

var helpLines = []string{
	"docview keys",
	"",
	"j k  Down Up       next / previous page",
	"h l  Left Right    page back / forward (follows reading direction)",
	"Space b  PgDn PgUp next / previous screen",
	"Home G End         first / last page",
	"g                  go to page",
	"H J K L            pan",
	"+ - 0              zoom in / out / reset",
	"w e p a            fit width / height / page, actual size",
	"[ ]                fewer / more pages across",
	"r                  toggle reading direction",
	"i                  invert colors",
	"f                  toggle fullscreen",
	"/ n N              search, next / previous match",
	"Ctrl+L             redraw",
	"Ctrl+Z             suspend",
	"Esc                dismiss message or quit",
	"q                  quit",
}

// drawText writes s starting at (x, y), clipped to width cells. It
// returns the column after the last cell written.
func (app *Application) drawText(x, y, width int, s string, style core.Style) int {
	end := x + width
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > end {
			break
		}
		app.backend.SetCell(x, y, core.Cell{Rune: r, Style: style})
		x += w
	}
	return x
}

func (app *Application) fillRow(y, width int, style core.Style) {
	app.backend.Fill(core.RectFromSize(y, 0, 1, width), core.Cell{Rune: ' ', Style: style})
}

// pageLabel is "3 / 120" or "3-4 / 120" when several pages are shown.
func (app *Application) pageLabel() string {
	total := app.doc.PageCount()
	ps := app.last.Placements
	if len(ps) == 0 {
		return fmt.Sprintf("%d / %d", app.vp.State().Page+1, total)
	}
	lo, hi := ps[0].Page, ps[0].Page
	for _, p := range ps {
		lo = min(lo, p.Page)
		hi = max(hi, p.Page)
	}
	if lo == hi {
		return fmt.Sprintf("%d / %d", lo+1, total)
	}
	return fmt.Sprintf("%d-%d / %d", lo+1, hi+1, total)
}

func (app *Application) drawTopBar(width int) {
	if width <= 0 {
		return
	}
	app.fillRow(0, width, barStyle)
	right := app.pageLabel()
	rw := runewidth.StringWidth(right)
	name := runewidth.Truncate(filepath.Base(app.path), max(0, width-rw-2), "…")
	app.drawText(1, 0, width-1, name, barStyle)
	app.drawText(max(0, width-rw-1), 0, rw, right, barStyle)
}

// drawBottomBar shows the prompt or the current message on the left and
// the render progress on the right. A negative percent hides progress.
func (app *Application) drawBottomBar(width, y, percent int) {
	if width <= 0 || y < 0 {
		return
	}
	app.fillRow(y, width, core.DefaultStyle())

	right := ""
	if percent >= 0 {
		right = fmt.Sprintf("Rendered: %d%%", percent)
	}
	rw := runewidth.StringWidth(right)
	avail := max(0, width-rw-1)

	left, style := app.ui.message, core.DefaultStyle()
	if app.ui.msgKind == msgError {
		style = errorStyle
	}
	if app.ui.prompt != promptNone {
		left, style = app.ui.prompt.label()+string(app.ui.input), core.DefaultStyle()
		// Keep the end of a long prompt visible.
		for runewidth.StringWidth(left) > avail && left != "" {
			_, size := firstRune(left)
			left = left[size:]
		}
	} else {
		left = runewidth.Truncate(left, avail, "…")
	}
	app.drawText(0, y, avail, left, style)
	if right != "" {
		app.drawText(width-rw, y, rw, right, core.DefaultStyle())
	}
}

func firstRune(s string) (rune, int) {
	for i, r := range s {
		if i > 0 {
			return r, i
		}
	}
	return 0, len(s)
}

func (app *Application) placeCursor(width, height int) {
	if app.ui.prompt == promptNone || height <= 0 {
		app.backend.HideCursor()
		return
	}
	text := app.ui.prompt.label() + string(app.ui.input)
	x := min(runewidth.StringWidth(text), max(0, width-1))
	app.backend.ShowCursor(x, height-1)
}

// drawCentered writes msg in the middle of rect.
func (app *Application) drawCentered(rect core.ScreenRect, msg string, style core.Style) {
	if rect.IsEmpty() {
		return
	}
	msg = runewidth.Truncate(msg, rect.Width(), "…")
	w := runewidth.StringWidth(msg)
	x := rect.Left + (rect.Width()-w)/2
	y := rect.Top + rect.Height()/2
	app.drawText(x, y, w, msg, style)
}

func (app *Application) drawHelp(area core.ScreenRect) {
	w := 0
	for _, l := range helpLines {
		w = max(w, runewidth.StringWidth(l))
	}
	box := core.RectFromSize(0, 0, len(helpLines)+2, w+4)
	top := area.Top + max(0, (area.Height()-box.Height())/2)
	left := area.Left + max(0, (area.Width()-box.Width())/2)
	box = box.Translate(top, left).Intersection(area)
	if box.IsEmpty() {
		return
	}
	app.display.Clear(box)
	app.backend.Fill(box, core.Cell{Rune: ' ', Style: barStyle})
	for i, l := range helpLines {
		y := box.Top + 1 + i
		if y >= box.Bottom {
			break
		}
		app.drawText(box.Left+2, y, box.Width()-4, l, barStyle)
	}
}

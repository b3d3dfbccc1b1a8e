package app

import (
	"fmt"
	"strconv"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/renderer/backend"
	"github.com/dshills/docview/internal/renderer/viewport"
)

// panStep is the number of cells one pan key moves.
const panStep = 4

type promptKind int

const (
	promptNone promptKind = iota
	promptGoto
	promptSearch
)

func (p promptKind) label() string {
	switch p {
	case promptGoto:
		return "Go to page: "
	case promptSearch:
		return "/"
	default:
		return ""
	}
}

type messageKind int

const (
	msgNone messageKind = iota
	msgInfo
	msgSearch
	msgError
)

const helpHint = "Press ? for help"

// uiState is the input and status line state.
type uiState struct {
	prompt     promptKind
	input      []rune
	message    string
	msgKind    messageKind
	help       bool
	fullscreen bool
	// jumpOnMatch moves to the first match a new search releases.
	jumpOnMatch bool
}

func (u *uiState) setMessage(kind messageKind, msg string) {
	u.msgKind = kind
	u.message = msg
}

func (u *uiState) clearMessage() {
	u.msgKind = msgNone
	u.message = ""
}

func (u *uiState) openPrompt(kind promptKind) {
	u.prompt = kind
	u.input = u.input[:0]
}

func (u *uiState) closePrompt() {
	u.prompt = promptNone
	u.input = u.input[:0]
}

// handleEvent routes a terminal event. It returns ErrQuit when the viewer
// should exit.
func (app *Application) handleEvent(ev backend.Event) error {
	switch ev.Type {
	case backend.EventResize:
		app.dirty = true
	case backend.EventMouse:
		app.handleMouse(ev)
	case backend.EventKey:
		return app.handleKey(ev)
	}
	return nil
}

func (app *Application) handleMouse(ev backend.Event) {
	switch ev.MouseButton {
	case backend.MouseWheelUp:
		app.apply(viewport.Scroll(-1))
	case backend.MouseWheelDown:
		app.apply(viewport.Scroll(1))
	case backend.MouseWheelLeft:
		app.apply(viewport.Pan(-panStep, 0))
	case backend.MouseWheelRight:
		app.apply(viewport.Pan(panStep, 0))
	}
}

func (app *Application) handleKey(ev backend.Event) error {
	if ev.Key == backend.KeyCtrlC {
		return ErrQuit
	}
	if app.ui.help {
		app.ui.help = false
		app.dirty = true
		return nil
	}
	if app.ui.prompt != promptNone {
		app.handlePromptKey(ev)
		return nil
	}

	switch ev.Key {
	case backend.KeyEscape:
		if app.ui.message == "" {
			return ErrQuit
		}
		app.ui.clearMessage()
		app.dirty = true
		return nil
	case backend.KeyCtrlZ:
		app.suspend()
		return nil
	case backend.KeyCtrlL:
		app.backend.Clear()
		app.dirty = true
		return nil
	case backend.KeyRune:
		return app.handleRune(ev.Rune)
	}

	if cmd, ok := app.keyCommand(ev.Key); ok {
		app.apply(cmd)
	}
	return nil
}

// keyCommand maps non-rune keys to viewport commands. Horizontal page
// keys follow the reading direction.
func (app *Application) keyCommand(k backend.Key) (viewport.Command, bool) {
	forward := 1
	if app.vp.State().Direction == document.RightToLeft {
		forward = -1
	}
	switch k {
	case backend.KeyDown:
		return viewport.Scroll(1), true
	case backend.KeyUp:
		return viewport.Scroll(-1), true
	case backend.KeyRight:
		return viewport.Scroll(forward), true
	case backend.KeyLeft:
		return viewport.Scroll(-forward), true
	case backend.KeyPageDown, backend.KeyCtrlD:
		return viewport.ScrollScreen(1), true
	case backend.KeyPageUp, backend.KeyCtrlU:
		return viewport.ScrollScreen(-1), true
	case backend.KeyHome:
		return viewport.GotoPage(0), true
	case backend.KeyEnd:
		return viewport.GotoPage(app.doc.PageCount() - 1), true
	}
	return viewport.Command{}, false
}

func (app *Application) handleRune(r rune) error {
	forward := 1
	if app.vp.State().Direction == document.RightToLeft {
		forward = -1
	}
	st := app.vp.State()

	switch r {
	case 'q':
		return ErrQuit
	case 'j':
		app.apply(viewport.Scroll(1))
	case 'k':
		app.apply(viewport.Scroll(-1))
	case 'l':
		app.apply(viewport.Scroll(forward))
	case 'h':
		app.apply(viewport.Scroll(-forward))
	case ' ':
		app.apply(viewport.ScrollScreen(1))
	case 'b':
		app.apply(viewport.ScrollScreen(-1))
	case 'G':
		app.apply(viewport.GotoPage(app.doc.PageCount() - 1))
	case 'H':
		app.apply(viewport.Pan(-panStep, 0))
	case 'L':
		app.apply(viewport.Pan(panStep, 0))
	case 'K':
		app.apply(viewport.Pan(0, -panStep))
	case 'J':
		app.apply(viewport.Pan(0, panStep))
	case '+', '=':
		app.apply(viewport.ZoomIn())
	case '-':
		app.apply(viewport.ZoomOut())
	case '0':
		app.apply(viewport.ZoomReset())
	case 'w':
		app.apply(viewport.SetFitMode(viewport.FitWidth))
	case 'e':
		app.apply(viewport.SetFitMode(viewport.FitHeight))
	case 'p':
		app.apply(viewport.SetFitMode(viewport.FitPage))
	case 'a':
		app.apply(viewport.SetFitMode(viewport.ActualSize))
	case 'r':
		dir := document.RightToLeft
		if st.Direction == document.RightToLeft {
			dir = document.LeftToRight
		}
		app.apply(viewport.SetDirection(dir))
	case ']':
		// Zero already means as many as fit.
		if st.MaxAcross > 0 {
			app.apply(viewport.SetMaxAcross(st.MaxAcross + 1))
		}
	case '[':
		app.apply(viewport.SetMaxAcross(max(1, st.MaxAcross-1)))
	case 'i':
		app.apply(viewport.ToggleInvert())
	case 'f':
		app.ui.fullscreen = !app.ui.fullscreen
		app.dirty = true
	case '?':
		app.ui.help = true
		app.dirty = true
	case 'g':
		app.ui.openPrompt(promptGoto)
		app.dirty = true
	case '/':
		app.ui.openPrompt(promptSearch)
		app.dirty = true
	case 'n':
		app.moveMatch(1)
	case 'N':
		app.moveMatch(-1)
	}
	return nil
}

func (app *Application) handlePromptKey(ev backend.Event) {
	app.dirty = true
	switch ev.Key {
	case backend.KeyEscape:
		app.ui.closePrompt()
	case backend.KeyEnter:
		kind, text := app.ui.prompt, string(app.ui.input)
		app.ui.closePrompt()
		app.submitPrompt(kind, text)
	case backend.KeyBackspace:
		if n := len(app.ui.input); n > 0 {
			app.ui.input = app.ui.input[:n-1]
		} else {
			app.ui.closePrompt()
		}
	case backend.KeyCtrlU:
		app.ui.input = app.ui.input[:0]
	case backend.KeyRune:
		if app.ui.prompt == promptGoto && (ev.Rune < '0' || ev.Rune > '9') {
			return
		}
		app.ui.input = append(app.ui.input, ev.Rune)
	}
}

func (app *Application) submitPrompt(kind promptKind, text string) {
	switch kind {
	case promptGoto:
		if text == "" {
			return
		}
		n, err := strconv.Atoi(text)
		total := app.doc.PageCount()
		if err != nil || n < 1 || n > total {
			app.ui.setMessage(msgError, fmt.Sprintf("Invalid page number: %s (1-%d)", text, total))
			return
		}
		app.apply(viewport.GotoPage(n - 1))
	case promptSearch:
		app.startSearch(text)
	}
}

// apply runs a viewport command and schedules a redraw when it changed
// the state.
func (app *Application) apply(cmd viewport.Command) {
	if app.vp.Apply(cmd) {
		app.dirty = true
	}
}

// startSearch replaces the current search session. An empty query clears
// the search.
func (app *Application) startSearch(query string) {
	app.session = app.search.Start(app.ctx, app.doc, app.doc.PageCount(), query, app.vp.State().Page)
	app.dirty = true
	if app.session == nil {
		app.searchEvents = nil
		app.ui.jumpOnMatch = false
		if app.ui.msgKind == msgSearch {
			app.ui.clearMessage()
		}
		return
	}
	app.searchEvents = app.session.Events()
	app.ui.jumpOnMatch = true
	app.metrics.RecordSearch()
	app.ui.setMessage(msgSearch, fmt.Sprintf("Searching for '%s'...", query))
	app.logger.Debug("search %s started: %q", app.session.ID(), query)
}

// restartSearch rescans the current query against a new document version.
// Matches stay highlighted but the viewport does not move.
func (app *Application) restartSearch() {
	query := app.session.Query()
	app.session = app.search.Start(app.ctx, app.doc, app.doc.PageCount(), query, app.vp.State().Page)
	app.ui.jumpOnMatch = false
	app.dirty = true
	if app.session == nil {
		app.searchEvents = nil
		return
	}
	app.searchEvents = app.session.Events()
	app.logger.Debug("search %s restarted: %q", app.session.ID(), query)
}

func (app *Application) moveMatch(dir int) {
	if app.session == nil {
		app.ui.setMessage(msgError, "No search")
		app.dirty = true
		return
	}
	next := app.session.Next
	if dir < 0 {
		next = app.session.Prev
	}
	m, cmd, ok := next()
	if !ok {
		if app.session.State().Terminal() {
			app.ui.setMessage(msgError, fmt.Sprintf("No matches for '%s'", app.session.Query()))
			app.dirty = true
		}
		return
	}
	app.ui.jumpOnMatch = false
	app.apply(cmd)
	app.logger.Debug("match %s", m)
	app.dirty = true
}

// stopProcess is swapped out by tests.
var stopProcess = suspendProcess

func (app *Application) suspend() {
	if err := app.backend.Suspend(); err != nil {
		app.logger.Warn("suspend: %v", err)
		return
	}
	if err := stopProcess(); err != nil {
		app.logger.Warn("stop process: %v", err)
	}
	if err := app.backend.Resume(); err != nil {
		app.logger.Error("resume: %v", err)
	}
	app.dirty = true
}

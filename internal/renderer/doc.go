// Package renderer groups the display layer of the docview viewer.
//
// The subpackages split the work of getting page bitmaps onto a terminal:
//
//	┌─────────────────────────────────────────┐
//	│        app (coordinating task)          │
//	├─────────────────────────────────────────┤
//	│  viewport  │  layout   │  graphics      │
//	│  (state)   │  (pure)   │  (Display)     │
//	├─────────────────────────────────────────┤
//	│  scheduler (workers)  →  pagecache      │
//	├─────────────────────────────────────────┤
//	│  backend (tcell / null)  │  core        │
//	└─────────────────────────────────────────┘
//
// viewport holds what the user asked to see. layout turns that state and
// the terminal size into placements and render keys. scheduler rasterizes
// keys on a bounded worker pool, most urgent first, and stores bitmaps in
// pagecache. graphics paints cached bitmaps into cells through backend.
//
// Only the app goroutine mutates viewport state. Workers never touch the
// screen.
package renderer

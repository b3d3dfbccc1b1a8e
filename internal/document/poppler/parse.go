package poppler

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/dshills/docview/internal/document"
)

// parseInfo reads the output of `pdfinfo -f 1 -l N`.
func parseInfo(r io.Reader) ([]document.PageDescriptor, error) {
	var (
		count int
		sizes = map[int][2]float64{}
		rots  = map[int]int{}
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		fields := strings.Fields(key)
		switch {
		case key == "Pages":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("parse page count %q: %w", value, err)
			}
			count = n
		case len(fields) == 3 && fields[0] == "Page" && fields[2] == "size":
			page, err := strconv.Atoi(fields[1])
			if err != nil {
				continue
			}
			w, h, err := parseSize(value)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", page, err)
			}
			sizes[page] = [2]float64{w, h}
		case len(fields) == 3 && fields[0] == "Page" && fields[2] == "rot":
			page, err := strconv.Atoi(fields[1])
			if err != nil {
				continue
			}
			rot, _ := strconv.Atoi(value)
			rots[page] = rot
		case key == "Page size" && len(sizes) == 0:
			w, h, err := parseSize(value)
			if err != nil {
				return nil, err
			}
			sizes[1] = [2]float64{w, h}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, errors.New("no pages reported")
	}

	pages := make([]document.PageDescriptor, count)
	last := sizes[1]
	for i := range pages {
		sz, ok := sizes[i+1]
		if !ok {
			sz = last
		}
		last = sz
		w, h := sz[0], sz[1]
		if rot := rots[i+1]; rot == 90 || rot == 270 {
			w, h = h, w
		}
		pages[i] = document.PageDescriptor{Index: i, Width: w, Height: h}
	}
	if pages[0].Width <= 0 || pages[0].Height <= 0 {
		return nil, errors.New("no page size reported")
	}
	return pages, nil
}

// parseSize parses "612 x 792 pts (letter)".
func parseSize(s string) (float64, float64, error) {
	f := strings.Fields(s)
	if len(f) < 3 || f[1] != "x" {
		return 0, 0, fmt.Errorf("malformed page size %q", s)
	}
	w, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.ParseFloat(f[2], 64)
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

type word struct {
	Text string
	Box  document.Rect
}

// parseBBox reads the XHTML written by `pdftotext -bbox` for a single page.
func parseBBox(r io.Reader) ([]word, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var words []word
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return words, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse bbox: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "word" {
			continue
		}
		var w struct {
			XMin float64 `xml:"xMin,attr"`
			YMin float64 `xml:"yMin,attr"`
			XMax float64 `xml:"xMax,attr"`
			YMax float64 `xml:"yMax,attr"`
			Text string  `xml:",chardata"`
		}
		if err := dec.DecodeElement(&w, &se); err != nil {
			return nil, fmt.Errorf("parse word: %w", err)
		}
		words = append(words, word{
			Text: strings.TrimSpace(w.Text),
			Box:  document.Rect{X0: w.XMin, Y0: w.YMin, X1: w.XMax, Y1: w.YMax},
		})
	}
}

// matchWords finds query in the word stream. Single-token queries match
// inside a word and the box is narrowed to the matched characters;
// multi-token queries must span consecutive words.
func matchWords(words []word, query string) []document.Rect {
	fold := cases.Fold()
	tokens := strings.Fields(fold.String(query))
	if len(tokens) == 0 {
		return nil
	}
	folded := make([]string, len(words))
	for i, w := range words {
		folded[i] = fold.String(w.Text)
	}

	var out []document.Rect
	if len(tokens) == 1 {
		for i, text := range folded {
			for off := 0; ; {
				idx := strings.Index(text[off:], tokens[0])
				if idx < 0 {
					break
				}
				start := off + idx
				out = append(out, narrow(words[i].Box, text, start, start+len(tokens[0])))
				off = start + len(tokens[0])
			}
		}
		return out
	}

	for i := 0; i+len(tokens) <= len(folded); i++ {
		if !strings.HasSuffix(folded[i], tokens[0]) {
			continue
		}
		ok := true
		for j := 1; j < len(tokens)-1; j++ {
			if folded[i+j] != tokens[j] {
				ok = false
				break
			}
		}
		last := len(tokens) - 1
		if !ok || !strings.HasPrefix(folded[i+last], tokens[last]) {
			continue
		}
		first := narrow(words[i].Box, folded[i], len(folded[i])-len(tokens[0]), len(folded[i]))
		end := narrow(words[i+last].Box, folded[i+last], 0, len(tokens[last]))
		box := first.Union(end)
		for j := 1; j < last; j++ {
			box = box.Union(words[i+j].Box)
		}
		out = append(out, box)
		i += last
	}
	return out
}

// narrow shrinks a word box horizontally to the byte range [start, end) of
// text, assuming evenly spaced characters.
func narrow(box document.Rect, text string, start, end int) document.Rect {
	n := len([]rune(text))
	if n == 0 {
		return box
	}
	r0 := len([]rune(text[:start]))
	r1 := len([]rune(text[:end]))
	step := box.Width() / float64(n)
	return document.Rect{
		X0: box.X0 + step*float64(r0),
		Y0: box.Y0,
		X1: box.X0 + step*float64(r1),
		Y1: box.Y1,
	}
}

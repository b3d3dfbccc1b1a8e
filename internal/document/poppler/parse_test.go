package poppler

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dshills/docview/internal/document"
)

const infoOutput = `Title:          Example
Producer:       pdfTeX
Pages:          3
Encrypted:      no
Page    1 size: 612 x 792 pts (letter)
Page    1 rot:  0
Page    2 size: 612 x 792 pts (letter)
Page    2 rot:  90
Page    3 size: 300.5 x 400 pts
Page    3 rot:  0
File size:      12345 bytes
`

func TestParseInfo(t *testing.T) {
	pages, err := parseInfo(strings.NewReader(infoOutput))
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	want := []document.PageDescriptor{
		{Index: 0, Width: 612, Height: 792},
		{Index: 1, Width: 792, Height: 612},
		{Index: 2, Width: 300.5, Height: 400},
	}
	if diff := cmp.Diff(want, pages); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInfoSinglePageSize(t *testing.T) {
	pages, err := parseInfo(strings.NewReader("Pages: 2\nPage size:      595 x 842 pts (A4)\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[1].Width != 595 || pages[1].Height != 842 {
		t.Errorf("pages = %+v", pages)
	}
}

func TestParseInfoErrors(t *testing.T) {
	for _, in := range []string{"", "Pages: x\n", "Pages: 2\n", "Pages: 1\nPage size: wide\n"} {
		if _, err := parseInfo(strings.NewReader(in)); err == nil {
			t.Errorf("parseInfo(%q) succeeded", in)
		}
	}
}

const bboxOutput = `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
<title></title>
<meta name="Producer" content="pdfTeX"/>
</head>
<body>
<doc>
  <page width="612.000000" height="792.000000">
    <word xMin="10.000000" yMin="20.000000" xMax="50.000000" yMax="30.000000">Hello</word>
    <word xMin="55.000000" yMin="20.000000" xMax="95.000000" yMax="30.000000">World</word>
    <word xMin="10.000000" yMin="40.000000" xMax="90.000000" yMax="50.000000">hello&amp;bye</word>
  </page>
</doc>
</body>
</html>
`

func TestParseBBox(t *testing.T) {
	words, err := parseBBox(strings.NewReader(bboxOutput))
	if err != nil {
		t.Fatalf("parseBBox: %v", err)
	}
	if len(words) != 3 {
		t.Fatalf("words = %d, want 3", len(words))
	}
	if words[2].Text != "hello&bye" {
		t.Errorf("text = %q", words[2].Text)
	}
	if words[1].Box != (document.Rect{X0: 55, Y0: 20, X1: 95, Y1: 30}) {
		t.Errorf("box = %v", words[1].Box)
	}
}

func TestMatchWordsSingleToken(t *testing.T) {
	words, err := parseBBox(strings.NewReader(bboxOutput))
	if err != nil {
		t.Fatal(err)
	}
	got := matchWords(words, "HELLO")
	want := []document.Rect{
		{X0: 10, Y0: 20, X1: 50, Y1: 30},
		{X0: 10, Y0: 40, X1: 10 + 5*80.0/9, Y1: 50},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("matches (-want +got):\n%s", diff)
	}
}

func TestMatchWordsPhrase(t *testing.T) {
	words, err := parseBBox(strings.NewReader(bboxOutput))
	if err != nil {
		t.Fatal(err)
	}
	got := matchWords(words, "hello world")
	want := []document.Rect{{X0: 10, Y0: 20, X1: 95, Y1: 30}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("matches (-want +got):\n%s", diff)
	}
	if got := matchWords(words, "world hello"); len(got) != 0 {
		t.Errorf("reversed phrase matched: %v", got)
	}
}

func TestRasterArgsCrop(t *testing.T) {
	desc := document.PageDescriptor{Index: 4, Width: 100, Height: 200}
	args := rasterArgs(desc, 50, 50, document.Rect{X0: 50, Y0: 100, X1: 100, Y1: 150})
	want := []string{
		"-f", "5", "-l", "5",
		"-scale-to-x", "100", "-scale-to-y", "200",
		"-x", "50", "-y", "100", "-W", "50", "-H", "50",
		"-png", "-singlefile",
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}

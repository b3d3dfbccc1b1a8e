package document

import (
	"image"
	"testing"
)

func TestRectIntersectUnion(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	b := Rect{5, 5, 20, 20}

	if got, want := a.Intersect(b), (Rect{5, 5, 10, 10}); got != want {
		t.Errorf("Intersect = %v, want %v", got, want)
	}
	if got, want := a.Union(b), (Rect{0, 0, 20, 20}); got != want {
		t.Errorf("Union = %v, want %v", got, want)
	}
	if got := a.Intersect(Rect{11, 11, 12, 12}); !got.Empty() {
		t.Errorf("disjoint Intersect = %v, want empty", got)
	}
	if got := (Rect{}).Union(b); got != b {
		t.Errorf("empty Union = %v, want %v", got, b)
	}
}

func TestRenderKeyIdentity(t *testing.T) {
	k1 := RenderKey{Version: 1, Page: 3, Width: 100, Height: 200, Crop: Rect{0, 0, 50, 50}}
	k2 := k1
	if k1 != k2 {
		t.Fatal("equal keys compare unequal")
	}
	k2.Color = Inverted
	if k1 == k2 {
		t.Error("color transform ignored in key equality")
	}
	if !k1.SamePage(k2) {
		t.Error("SamePage = false for same page")
	}
	k2.Version = 2
	if k1.SamePage(k2) {
		t.Error("SamePage = true across versions")
	}
	if got := k1.Bytes(); got != 100*200*4 {
		t.Errorf("Bytes = %d", got)
	}
}

func TestParseReadingDirection(t *testing.T) {
	if d, err := ParseReadingDirection("rtl"); err != nil || d != RightToLeft {
		t.Errorf("rtl = %v, %v", d, err)
	}
	if _, err := ParseReadingDirection("up"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestColorTransformInvert(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(img.Pix, []uint8{255, 255, 255, 255, 10, 20, 30, 255})

	Inverted.Apply(img)

	want := []uint8{0, 0, 0, 255, 245, 235, 225, 255}
	for i := range want {
		if img.Pix[i] != want[i] {
			t.Fatalf("Pix = %v, want %v", img.Pix, want)
		}
	}
}

func TestColorTransformCustom(t *testing.T) {
	fg, err := ParseHex("#ff0000")
	if err != nil {
		t.Fatal(err)
	}
	bg, err := ParseHex("#000080")
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(img.Pix, []uint8{255, 255, 255, 255, 0, 0, 0, 255})

	Custom(fg, bg).Apply(img)

	if got := img.Pix[0:3]; got[0] != 0 || got[2] != 0x80 {
		t.Errorf("paper pixel = %v, want background", got)
	}
	if got := img.Pix[4:7]; got[0] != 0xff || got[2] != 0 {
		t.Errorf("ink pixel = %v, want foreground", got)
	}
}

func TestParseHexInvalid(t *testing.T) {
	if _, err := ParseHex("blue"); err == nil {
		t.Error("expected error")
	}
}

package imageio

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/rankpress/internal/models"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	return img
}

func TestFindFirstImage(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "b.png", "a.JPG"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "0.png"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := FindFirstImage(dir, DefaultExtensions)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "a.JPG"); got != want {
		t.Errorf("FindFirstImage = %s, want %s", got, want)
	}
}

func TestFindFirstImage_NoImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := FindFirstImage(dir, DefaultExtensions)
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("error = %v, want ErrNoImage", err)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.png", []string{".png"}, true},
		{"/a/b.PNG", []string{"png"}, true},
		{"/a/b.txt", []string{".png"}, false},
		{"/a/b", nil, true},
	}
	for _, tt := range tests {
		if got := MatchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("MatchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestLoad_NormalizesChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	writePNG(t, path, gradient(4, 3))

	img, err := Load(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if img.NumChannels() != 3 {
		t.Fatalf("channels = %d, want 3", img.NumChannels())
	}
	rows, cols := img.Dims()
	if rows != 3 || cols != 4 {
		t.Fatalf("dims = %dx%d, want 3x4", rows, cols)
	}
	if got := img.Channels[0].At(1, 2); got != 20.0/255 {
		t.Errorf("R(1,2) = %v, want %v", got, 20.0/255)
	}
	if got := img.Channels[1].At(2, 0); got != 20.0/255 {
		t.Errorf("G(2,0) = %v, want %v", got, 20.0/255)
	}
	if got := img.Channels[2].At(0, 0); got != 200.0/255 {
		t.Errorf("B(0,0) = %v, want %v", got, 200.0/255)
	}
}

func TestLoad_Downscales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	writePNG(t, path, gradient(20, 10))

	img, err := Load(path, 8)
	if err != nil {
		t.Fatal(err)
	}
	rows, cols := img.Dims()
	if cols != 8 || rows != 4 {
		t.Errorf("dims = %dx%d, want 4x8", rows, cols)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png"), 0); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGrayscale(t *testing.T) {
	color := models.NewImage(
		mat.NewDense(1, 2, []float64{1, 0}),
		mat.NewDense(1, 2, []float64{1, 0}),
		mat.NewDense(1, 2, []float64{1, 1}),
	)
	gray, err := Grayscale(color)
	if err != nil {
		t.Fatal(err)
	}
	if got := gray.Channels[0].At(0, 0); got < 0.9999999 || got > 1.0000001 {
		t.Errorf("white luminance = %v, want 1", got)
	}
	if got := gray.Channels[0].At(0, 1); got != lumaB {
		t.Errorf("blue luminance = %v, want %v", got, lumaB)
	}

	if _, err := Grayscale(gray); err == nil {
		t.Error("expected error converting a one-channel image")
	}
}

func TestSave_ClampsAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	color := models.NewImage(
		mat.NewDense(1, 3, []float64{-0.2, 0.5, 1.3}),
		mat.NewDense(1, 3, []float64{0, 1, 100.0 / 255}),
		mat.NewDense(1, 3, []float64{0.25, 0.75, 1}),
	)
	path := filepath.Join(dir, "color.png")
	if err := Save(path, color); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	wantR := []float64{0, 128.0 / 255, 1}
	for x, want := range wantR {
		if got := back.Channels[0].At(0, x); got != want {
			t.Errorf("R(0,%d) = %v, want %v", x, got, want)
		}
	}
	if got := back.Channels[1].At(0, 2); got != 100.0/255 {
		t.Errorf("G(0,2) = %v, want %v", got, 100.0/255)
	}

	gray := models.NewImage(mat.NewDense(2, 2, []float64{0, 0.5, 1, 2}))
	grayPath := filepath.Join(dir, "gray.png")
	if err := Save(grayPath, gray); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(grayPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := decoded.(*image.Gray)
	if !ok {
		t.Fatalf("decoded %T, want *image.Gray", decoded)
	}
	if g.GrayAt(1, 1).Y != 255 || g.GrayAt(0, 1).Y != 255 || g.GrayAt(1, 0).Y != 128 {
		t.Errorf("unexpected gray pixels: %v", g.Pix)
	}
}

func TestToImage_RejectsBadChannelCount(t *testing.T) {
	two := models.NewImage(mat.NewDense(1, 1, nil), mat.NewDense(1, 1, nil))
	if _, err := ToImage(two); err == nil {
		t.Error("expected error for two-channel image")
	}
	if _, err := ToImage(models.NewImage()); err == nil {
		t.Error("expected error for empty image")
	}
}

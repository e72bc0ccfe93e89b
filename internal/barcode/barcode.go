// Package barcode renders Code128 barcodes for certificate numbers.
package barcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	boombuler "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Config controls barcode rendering. Zero values fall back to the defaults
// documented on DefaultConfig.
type Config struct {
	ModuleWidth float64 // width of one barcode module in pixels
	BarHeight   int     // bar height in pixels, excluding label and margins
	ShowText    bool    // draw the encoded value under the bars
	FontSize    int
	TextMargin  int // gap between bars and label
	Margin      int // quiet zone around the symbol
	Background  color.Color
	LineColor   color.Color
}

// DefaultConfig mirrors the generator's standalone defaults: 2px modules,
// 50px bars, 12px label with a 5px gap inside a 10px quiet zone.
func DefaultConfig() Config {
	return Config{
		ModuleWidth: 2,
		BarHeight:   50,
		ShowText:    true,
		FontSize:    12,
		TextMargin:  5,
		Margin:      10,
		Background:  color.White,
		LineColor:   color.Black,
	}
}

// CompactConfig is the preset the certificate compositor embeds: narrower
// modules and shorter bars so the symbol fits the bottom strip.
func CompactConfig() Config {
	cfg := DefaultConfig()
	cfg.ModuleWidth = 1.5
	cfg.BarHeight = 40
	cfg.FontSize = 10
	return cfg
}

// EncodingError reports a value the Code128 symbology cannot encode.
type EncodingError struct {
	Value string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode %q as Code128: %v", e.Value, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// CanEncode reports whether value is encodable without allocating a raster.
func CanEncode(value string) bool {
	_, err := code128.Encode(value)
	return err == nil
}

// Encode renders value as a Code128 raster. The returned image includes the
// quiet zone and, when cfg.ShowText is set, the human-readable label.
func Encode(value string, cfg Config) (image.Image, error) {
	cfg = withDefaults(cfg)

	code, err := code128.Encode(value)
	if err != nil {
		return nil, &EncodingError{Value: value, Err: err}
	}

	native := code.Bounds().Dx()
	barsWidth := int(math.Round(float64(native) * cfg.ModuleWidth))
	if barsWidth < native {
		barsWidth = native
	}

	bars, err := boombuler.Scale(code, barsWidth, cfg.BarHeight)
	if err != nil {
		return nil, &EncodingError{Value: value, Err: err}
	}

	width := barsWidth + 2*cfg.Margin
	height := cfg.BarHeight + 2*cfg.Margin
	if cfg.ShowText {
		height += cfg.TextMargin + cfg.FontSize
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(cfg.Background)
	dc.Clear()

	// The scaled symbol is black-on-white; repaint it in the configured colors.
	dc.SetColor(cfg.LineColor)
	b := bars.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := bars.At(x, y).RGBA()
			if r+g+bl < 3*0x8000 {
				dc.SetPixel(cfg.Margin+x-b.Min.X, cfg.Margin+y-b.Min.Y)
			}
		}
	}

	if cfg.ShowText {
		dc.SetFontFace(labelFace(float64(cfg.FontSize)))
		dc.SetColor(cfg.LineColor)
		labelY := float64(cfg.Margin+cfg.BarHeight+cfg.TextMargin) + float64(cfg.FontSize)/2
		dc.DrawStringAnchored(value, float64(width)/2, labelY, 0.5, 0.5)
	}

	return dc.Image(), nil
}

// EncodePNG renders value as a standalone PNG, e.g. for validity testing.
func EncodePNG(value string, cfg Config) ([]byte, error) {
	img, err := Encode(value, cfg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode barcode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.ModuleWidth <= 0 {
		cfg.ModuleWidth = def.ModuleWidth
	}
	if cfg.BarHeight <= 0 {
		cfg.BarHeight = def.BarHeight
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = def.FontSize
	}
	if cfg.TextMargin <= 0 {
		cfg.TextMargin = def.TextMargin
	}
	if cfg.Margin <= 0 {
		cfg.Margin = def.Margin
	}
	if cfg.Background == nil {
		cfg.Background = def.Background
	}
	if cfg.LineColor == nil {
		cfg.LineColor = def.LineColor
	}
	return cfg
}

var (
	labelFontOnce sync.Once
	labelFont     *truetype.Font
	labelFaceMu   sync.Mutex
	labelFaces    = map[float64]font.Face{}
)

func labelFace(size float64) font.Face {
	labelFontOnce.Do(func() {
		labelFont, _ = truetype.Parse(goregular.TTF)
	})

	labelFaceMu.Lock()
	defer labelFaceMu.Unlock()
	if face, ok := labelFaces[size]; ok {
		return face
	}
	face := truetype.NewFace(labelFont, &truetype.Options{Size: size, DPI: 72})
	labelFaces[size] = face
	return face
}

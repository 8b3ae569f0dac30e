// Package matrix holds the host frame buffer that LED drivers consume. Pixels
// are written in visible canvas coordinates and stored at the physical
// address chosen by the installed PixelMapper.
package matrix

import (
	"image"
	"image/color"

	"github.com/coreman2200/fbmatrix/internal/layout"
)

// PixelMapper translates visible coordinates into physical buffer
// coordinates. MapVisibleToMatrix returns (-1, -1) for pixels that are not
// rendered.
type PixelMapper interface {
	Name() string
	VisibleSize(matrixWidth, matrixHeight int) (visibleWidth, visibleHeight int)
	MapVisibleToMatrix(visibleX, visibleY int) (matrixX, matrixY int)
}

// Canvas is an RGB frame buffer for the physical matrix. It is not safe for
// concurrent writers.
type Canvas struct {
	phys   layout.Matrix
	mapper PixelMapper
	visW   int
	visH   int
	pix    []byte // 3 bytes per LED, in layout index order
}

// NewCanvas allocates a buffer for the physical matrix. Until a mapper is
// applied the visible canvas equals the physical buffer.
func NewCanvas(phys layout.Matrix) *Canvas {
	return &Canvas{
		phys: phys,
		visW: phys.Width,
		visH: phys.Height,
		pix:  make([]byte, phys.Count()*3),
	}
}

// ApplyPixelMapper installs m; nil restores the identity mapping.
func (c *Canvas) ApplyPixelMapper(m PixelMapper) {
	c.mapper = m
	if m == nil {
		c.visW, c.visH = c.phys.Width, c.phys.Height
		return
	}
	c.visW, c.visH = m.VisibleSize(c.phys.Width, c.phys.Height)
}

// Mapper returns the installed mapper, or nil.
func (c *Canvas) Mapper() PixelMapper { return c.mapper }

func (c *Canvas) Width() int  { return c.visW }
func (c *Canvas) Height() int { return c.visH }

// Physical returns the geometry of the underlying buffer.
func (c *Canvas) Physical() layout.Matrix { return c.phys }

func (c *Canvas) offset(x, y int) int {
	if c.mapper != nil {
		x, y = c.mapper.MapVisibleToMatrix(x, y)
	} else if x >= c.visW || y >= c.visH {
		return -1
	}
	if !c.phys.Contains(x, y) {
		return -1
	}
	return c.phys.Index(x, y) * 3
}

// SetPixel writes one visible pixel. Pixels outside the canvas or mapped
// outside the buffer are dropped.
func (c *Canvas) SetPixel(x, y int, r, g, b uint8) {
	o := c.offset(x, y)
	if o < 0 {
		return
	}
	c.pix[o], c.pix[o+1], c.pix[o+2] = r, g, b
}

// Pixel reads one visible pixel; ok is false when it has no physical address.
func (c *Canvas) Pixel(x, y int) (r, g, b uint8, ok bool) {
	o := c.offset(x, y)
	if o < 0 {
		return 0, 0, 0, false
	}
	return c.pix[o], c.pix[o+1], c.pix[o+2], true
}

// Fill paints every visible pixel.
func (c *Canvas) Fill(r, g, b uint8) {
	for y := 0; y < c.visH; y++ {
		for x := 0; x < c.visW; x++ {
			c.SetPixel(x, y, r, g, b)
		}
	}
}

// Clear zeroes the whole physical buffer, including LEDs no visible pixel
// maps to.
func (c *Canvas) Clear() {
	for i := range c.pix {
		c.pix[i] = 0
	}
}

// Bytes returns the physical buffer in driver order. The slice aliases the
// canvas; copy it before handing it to another goroutine.
func (c *Canvas) Bytes() []byte { return c.pix }

// image/draw support over the visible canvas.

func (c *Canvas) ColorModel() color.Model { return color.RGBAModel }

func (c *Canvas) Bounds() image.Rectangle { return image.Rect(0, 0, c.visW, c.visH) }

func (c *Canvas) At(x, y int) color.Color {
	r, g, b, ok := c.Pixel(x, y)
	if !ok {
		return color.RGBA{}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func (c *Canvas) Set(x, y int, col color.Color) {
	rgba := color.RGBAModel.Convert(col).(color.RGBA)
	c.SetPixel(x, y, rgba.R, rgba.G, rgba.B)
}

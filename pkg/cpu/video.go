package cpu

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"hackvm/pkg/grid"
)

// Screen geometry: 32 words per row, least significant bit leftmost.
const (
	ScreenWidth  = 512
	ScreenHeight = 256
	wordsPerRow  = ScreenWidth / 16
)

var (
	pixelOn  = color.RGBA{0x00, 0x00, 0x00, 0xFF}
	pixelOff = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
)

// Pixel reports whether the screen pixel at (x, y) is set.
func (c *CPU) Pixel(x, y int) bool {
	word := c.RAM[ScreenWordAddr(x, y)]
	return word&(1<<(x%16)) != 0
}

// ScreenWordAddr is the RAM address of the word holding pixel (x, y).
func ScreenWordAddr(x, y int) uint16 {
	return uint16(ScreenBase + grid.GetGridIndex(x/16, y, wordsPerRow))
}

// GetFramebufferRGBA decodes the screen memory map into a 512×256 RGBA8888
// byte slice (length 512*256*4).
func (c *CPU) GetFramebufferRGBA() []byte {
	pixels := make([]byte, ScreenWidth*ScreenHeight*4)

	for wordIdx := 0; wordIdx < ScreenWords; wordIdx++ {
		word := c.RAM[ScreenBase+wordIdx]
		wcol, row := grid.GetGridCoords(wordIdx, wordsPerRow)
		for bit := 0; bit < 16; bit++ {
			col := pixelOff
			if word&(1<<bit) != 0 {
				col = pixelOn
			}
			pixelIdx := (row*ScreenWidth + wcol*16 + bit) * 4
			pixels[pixelIdx+0] = col.R
			pixels[pixelIdx+1] = col.G
			pixels[pixelIdx+2] = col.B
			pixels[pixelIdx+3] = col.A
		}
	}

	return pixels
}

// GetFramebufferImage returns the screen as an *image.RGBA.
func (c *CPU) GetFramebufferImage() *image.RGBA {
	pix := c.GetFramebufferRGBA()
	return &image.RGBA{
		Pix:    pix,
		Stride: ScreenWidth * 4,
		Rect:   image.Rect(0, 0, ScreenWidth, ScreenHeight),
	}
}

// ScaledFramebuffer returns the screen enlarged by an integer factor with
// nearest-neighbour sampling so pixels stay crisp.
func (c *CPU) ScaledFramebuffer(scale int) *image.RGBA {
	src := c.GetFramebufferImage()
	if scale <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, ScreenWidth*scale, ScreenHeight*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// SaveScreenshot encodes the screen as a PNG and writes it to filename.
func (c *CPU) SaveScreenshot(filename string, scale int) error {
	img := c.ScaledFramebuffer(scale)
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

package utils

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
)

// QRCodeSize is the edge length in pixels of rendered pickup codes.
const QRCodeSize = 256

// RenderQRPNG encodes content as a QR code and returns it as an 8-bit
// grayscale PNG.  The quiet zone is kept.
func RenderQRPNG(content string, size int) ([]byte, error) {
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	code.DisableBorder = false

	src := code.Image(size)
	gray := image.NewGray(src.Bounds())
	draw.Draw(gray, gray.Bounds(), src, src.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

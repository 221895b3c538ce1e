package services

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type QROptions struct {
	Content string
	Size    int
	FgColor string // hex, e.g. "#000000"
	BgColor string
}

type QRService struct{}

func NewQRService() *QRService {
	return &QRService{}
}

func (s *QRService) GeneratePNG(opts QROptions) ([]byte, error) {
	qr, err := qrcode.New(opts.Content, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	qr.ForegroundColor = parseHexColor(opts.FgColor, color.Black)
	qr.BackgroundColor = parseHexColor(opts.BgColor, color.White)

	return qr.PNG(clampQRSize(opts.Size))
}

func (s *QRService) GenerateSVG(opts QROptions) (string, error) {
	qr, err := qrcode.New(opts.Content, qrcode.Medium)
	if err != nil {
		return "", err
	}

	qr.DisableBorder = true
	bitmap := qr.Bitmap()
	size := len(bitmap)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size)
	fmt.Fprintf(&sb, `<rect width="100%%" height="100%%" fill="%s"/>`, hexOrDefault(opts.BgColor, "#FFFFFF"))
	fmt.Fprintf(&sb, `<path fill="%s" d="`, hexOrDefault(opts.FgColor, "#000000"))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if bitmap[y][x] {
				fmt.Fprintf(&sb, "M%d %dh1v1h-1z ", x, y)
			}
		}
	}
	sb.WriteString(`"/></svg>`)
	return sb.String(), nil
}

func clampQRSize(size int) int {
	if size <= 0 {
		return defaultQRSize
	}
	if size > maxQRSize {
		return maxQRSize
	}
	return size
}

func isHexColor(s string) bool {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func hexOrDefault(s, def string) string {
	if !isHexColor(s) {
		return def
	}
	return "#" + strings.TrimPrefix(s, "#")
}

func parseHexColor(s string, defaultColor color.Color) color.Color {
	if !isHexColor(s) {
		return defaultColor
	}
	s = strings.TrimPrefix(s, "#")

	hexToByte := func(c byte) byte {
		switch {
		case c >= '0' && c <= '9':
			return c - '0'
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10
		default:
			return c - 'A' + 10
		}
	}

	r := (hexToByte(s[0]) << 4) + hexToByte(s[1])
	g := (hexToByte(s[2]) << 4) + hexToByte(s[3])
	b := (hexToByte(s[4]) << 4) + hexToByte(s[5])

	return color.RGBA{R: r, G: g, B: b, A: 255}
}

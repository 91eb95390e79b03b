package printer

import (
	"github.com/skip2/go-qrcode"
)

// QRCode encodes content as a PNG of size x size pixels
func QRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

package totp

import (
	"encoding/base64"
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrSize           = 256
	pngDataURIPrefix = "data:image/png;base64,"
)

// QRCodeDataURI renders uri as a PNG QR code and returns it as a data: URI
// suitable for an <img> src attribute.
func QRCodeDataURI(uri string) (string, error) {
	if uri == "" {
		return "", errors.New("empty enrollment uri")
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, qrSize)
	if err != nil {
		return "", err
	}
	return pngDataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

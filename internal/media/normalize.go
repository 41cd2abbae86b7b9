// Package media normalizes uploaded images and stores them on an image host or S3.
package media

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	MaxDimension = 1080
	WebPQuality  = 80
)

// ErrNotImage is returned for payloads that are not a supported image.
var ErrNotImage = errors.New("unsupported image")

// Detect sniffs data and returns its content type and file extension.
func Detect(data []byte) (contentType, ext string, err error) {
	ct := http.DetectContentType(data)
	switch ct {
	case "image/jpeg":
		return ct, "jpg", nil
	case "image/png":
		return ct, "png", nil
	case "image/gif":
		return ct, "gif", nil
	case "image/webp":
		return ct, "webp", nil
	}
	return "", "", ErrNotImage
}

// Normalize decodes data, scales it to fit MaxDimension square and re-encodes it as WebP.
func Normalize(data []byte) ([]byte, error) {
	if _, _, err := Detect(data); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil || !isSupportedFormat(format) {
		return nil, ErrNotImage
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, resizeToFit(img, MaxDimension, MaxDimension), &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(format) {
	case "jpeg", "png", "gif", "webp":
		return true
	}
	return false
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

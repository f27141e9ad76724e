package qr

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

const (
	payloadVersion   = "EP1"
	payloadSeparator = "."
	signatureBytes   = 16

	DefaultImageSize = 512
)

var (
	// ErrMalformedPayload covers anything that is not a payload this
	// generator signed: bad structure, bad encoding, or a signature mismatch.
	ErrMalformedPayload = errors.New("malformed qr payload")
	ErrUnreadableImage  = errors.New("qr image could not be decoded")
)

var b64 = base64.RawURLEncoding

// Claims are the fields recovered from a payload.
type Claims struct {
	TicketID string
	UserID   string
	TeamName string
}

type QRGenerator struct {
	secret    []byte
	imageSize int
}

func NewQRGenerator(secret string, imageSize int) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	if imageSize <= 0 {
		imageSize = DefaultImageSize
	}
	return &QRGenerator{secret: hashed[:], imageSize: imageSize}
}

// GeneratePayload is deterministic: the same inputs always yield the same
// string. Fields are base64url encoded so any content survives the split.
func (q *QRGenerator) GeneratePayload(ticketID, userID, teamName string) string {
	body := strings.Join([]string{
		payloadVersion,
		b64.EncodeToString([]byte(ticketID)),
		b64.EncodeToString([]byte(userID)),
		b64.EncodeToString([]byte(teamName)),
	}, payloadSeparator)

	return body + payloadSeparator + b64.EncodeToString(q.sign(body))
}

func (q *QRGenerator) DecodePayload(payload string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(payload), payloadSeparator)
	if len(parts) != 5 {
		return Claims{}, fmt.Errorf("%w: expected 5 segments, got %d", ErrMalformedPayload, len(parts))
	}
	if parts[0] != payloadVersion {
		return Claims{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedPayload, parts[0])
	}

	sig, err := b64.DecodeString(parts[4])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: signature encoding: %v", ErrMalformedPayload, err)
	}
	body := strings.Join(parts[:4], payloadSeparator)
	if !hmac.Equal(sig, q.sign(body)) {
		return Claims{}, fmt.Errorf("%w: signature mismatch", ErrMalformedPayload)
	}

	fields := make([]string, 3)
	for i, part := range parts[1:4] {
		raw, err := b64.DecodeString(part)
		if err != nil {
			return Claims{}, fmt.Errorf("%w: field %d encoding: %v", ErrMalformedPayload, i+1, err)
		}
		fields[i] = string(raw)
	}

	claims := Claims{TicketID: fields[0], UserID: fields[1], TeamName: fields[2]}
	if claims.TicketID == "" || claims.UserID == "" {
		return Claims{}, fmt.Errorf("%w: missing ticket or user id", ErrMalformedPayload)
	}
	return claims, nil
}

func (q *QRGenerator) sign(body string) []byte {
	mac := hmac.New(sha256.New, q.secret)
	mac.Write([]byte(body))
	return mac.Sum(nil)[:signatureBytes]
}

// GenerateImage renders the payload as a PNG QR code.
func (q *QRGenerator) GenerateImage(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("empty qr payload")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, q.imageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr image: %w", err)
	}
	return png, nil
}

// WriteTempImage writes the QR PNG to a new temporary file in dir (the system
// temp dir when empty). The caller owns the file and must remove it.
func (q *QRGenerator) WriteTempImage(payload, dir string) (string, error) {
	png, err := q.GenerateImage(payload)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "entrypass-qr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp qr file: %w", err)
	}
	if _, err := f.Write(png); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp qr file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp qr file: %w", err)
	}
	return f.Name(), nil
}

// DecodeImage reads the text back out of a QR image.
func DecodeImage(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return result.GetText(), nil
}

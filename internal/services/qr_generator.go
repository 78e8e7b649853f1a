package services

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"
	"github.com/skip2/go-qrcode"

	"whatsapp-campaigns/internal/config"
)

// QRGenerator renders authentication challenges as scannable images
type QRGenerator struct {
	config config.QRCodeConfig
}

// NewQRGenerator creates a new QR generator
func NewQRGenerator(cfg config.QRCodeConfig) *QRGenerator {
	return &QRGenerator{
		config: cfg,
	}
}

// GenerateQRCodePNG generates a QR code as PNG bytes
func (g *QRGenerator) GenerateQRCodePNG(data string) ([]byte, error) {
	if data == "" {
		return nil, fmt.Errorf("QR code data cannot be empty")
	}

	size := g.config.Size
	if size <= 0 {
		size = 256
	}

	pngBytes, err := qrcode.Encode(data, g.recoveryLevel(), size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code PNG: %w", err)
	}

	return pngBytes, nil
}

// GenerateQRCodeDataURI generates a QR code as a PNG data URI
func (g *QRGenerator) GenerateQRCodeDataURI(data string) (string, error) {
	pngBytes, err := g.GenerateQRCodePNG(data)
	if err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes), nil
}

// PrintToTerminal writes the challenge as half-block characters
func (g *QRGenerator) PrintToTerminal(data string, w io.Writer) {
	qrterminal.GenerateHalfBlock(data, qrterminal.L, w)
}

func (g *QRGenerator) recoveryLevel() qrcode.RecoveryLevel {
	switch g.config.RecoveryLevel {
	case "low":
		return qrcode.Low
	case "high":
		return qrcode.High
	case "highest":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

// Package web embeds the HTML templates and static assets served by the
// HTTP layer.
package web

import "embed"

//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static
var StaticFS embed.FS

//go:embed static/logo.png
var defaultReceipt []byte

// DefaultReceiptName is the filename stored for expenses recorded
// without a receipt image.
const DefaultReceiptName = "logo.png"

// DefaultReceipt returns the placeholder image stored when an expense
// has no uploaded receipt.
func DefaultReceipt() (string, []byte) {
	return DefaultReceiptName, defaultReceipt
}

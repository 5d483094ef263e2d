package middleware

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// DefaultCompressionLevel is shared by the gzip, deflate and brotli encoders.
const DefaultCompressionLevel = 5

// Compress returns chi's compressor with a brotli encoder registered ahead of
// gzip and deflate. JSON and problem+json responses are compressed.
func Compress(level int) func(http.Handler) http.Handler {
	c := chimiddleware.NewCompressor(level,
		"application/json",
		"application/problem+json",
		"text/plain",
	)
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return c.Handler
}

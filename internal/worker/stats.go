package worker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/l4ndm1nes/taskflow-micro-saas/internal/models"
)

// ComputeStats derives the summary for a fetched file: byte length,
// best-effort line count, and a hex sha256 digest of the raw bytes.
func ComputeStats(data []byte) models.Stats {
	sum := sha256.Sum256(data)
	return models.Stats{
		ByteCount: int64(len(data)),
		LineCount: countLines(data),
		SHA256:    hex.EncodeToString(sum[:]),
	}
}

// countLines decodes lossily (invalid UTF-8 becomes U+FFFD) and counts
// lines the way splitlines does: \n, \r\n and lone \r each end a line,
// and a trailing line break does not start an empty final line.
func countLines(data []byte) *int64 {
	text := strings.ToValidUTF8(string(data), string(utf8.RuneError))

	var n int64
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			n++
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			n++
		}
	}
	if len(text) > 0 {
		last := text[len(text)-1]
		if last != '\n' && last != '\r' {
			n++
		}
	}
	return &n
}

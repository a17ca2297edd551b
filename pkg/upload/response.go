package upload

import (
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

const errorSnippetBytes = 512

// decodeText converts a response body to a string according to the charset
// of contentType. ok is false when the body cannot be represented as text.
func decodeText(raw []byte, contentType string) (text string, ok bool) {
	charset := ""
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			charset = strings.TrimSpace(params["charset"])
		}
	}

	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", false
		}
		if name, _ := htmlindex.Name(enc); name != "utf-8" {
			decoded, err := enc.NewDecoder().Bytes(raw)
			if err != nil {
				return "", false
			}
			raw = decoded
		}
	}

	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// errorSnippet reads a bounded prefix of a rejected response for diagnostics.
func errorSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, errorSnippetBytes))
	s := strings.TrimSpace(string(b))
	if !utf8.ValidString(s) {
		return ""
	}
	return s
}

package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Encode writes p as a single-part multipart/form-data body delimited by
// boundary and returns the matching Content-Type header value.
func Encode(w io.Writer, p Payload, fieldName, boundary string) (string, error) {
	if p.Empty() {
		return "", validationError("payload is empty")
	}
	if fieldName == "" || strings.ContainsAny(fieldName, "\r\n\"") {
		return "", validationError("invalid form field name %q", fieldName)
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return "", &Error{Kind: KindValidation, Message: "set boundary", Err: err}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(fieldName), quoteEscaper.Replace(p.filename)))
	h.Set("Content-Type", p.mimeType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(p.data); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart: %w", err)
	}
	return mw.FormDataContentType(), nil
}

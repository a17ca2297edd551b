package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMIMEType is used when a payload is created without a MIME type.
const DefaultMIMEType = "audio/m4a"

var audioTypes = map[string]string{
	".m4a":  "audio/m4a",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".caf":  "audio/x-caf",
}

// Payload is an encoded audio recording together with the filename and MIME
// type it is uploaded under. A Payload is immutable; the zero value is empty
// and is rejected by the client.
type Payload struct {
	data     []byte
	filename string
	mimeType string
}

// NewPayload copies data into a new Payload. An empty mimeType selects
// DefaultMIMEType.
func NewPayload(data []byte, filename, mimeType string) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, validationError("payload is empty")
	}
	if err := validateFilename(filename); err != nil {
		return Payload{}, err
	}
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	if err := validateMIMEType(mimeType); err != nil {
		return Payload{}, err
	}

	return Payload{
		data:     bytes.Clone(data),
		filename: filename,
		mimeType: mimeType,
	}, nil
}

// OpenPayload reads a finished recording from path. The file must no longer
// be written to. An empty mimeType is inferred from the file extension.
func OpenPayload(path, mimeType string) (Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Payload{}, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Payload{}, fmt.Errorf("read recording: %w", err)
	}

	if mimeType == "" {
		mimeType = MIMETypeForFile(path)
	}
	return NewPayload(data, filepath.Base(path), mimeType)
}

// MIMETypeForFile guesses an audio MIME type from the file extension.
func MIMETypeForFile(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Filename returns the name the payload is uploaded under.
func (p Payload) Filename() string { return p.filename }

// MIMEType returns the payload's content type.
func (p Payload) MIMEType() string { return p.mimeType }

// Size returns the number of audio bytes.
func (p Payload) Size() int { return len(p.data) }

// Empty reports whether the payload carries no audio.
func (p Payload) Empty() bool { return len(p.data) == 0 }

// Reader returns a fresh reader over the audio bytes.
func (p Payload) Reader() io.Reader { return bytes.NewReader(p.data) }

func validateFilename(name string) error {
	if name == "" {
		return validationError("filename is empty")
	}
	if strings.ContainsAny(name, "\r\n\x00") {
		return validationError("filename %q contains control characters", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return validationError("filename %q must not contain path separators", name)
	}
	return nil
}

func validateMIMEType(mimeType string) error {
	if strings.ContainsAny(mimeType, "\r\n") {
		return validationError("mime type %q contains line breaks", mimeType)
	}
	if _, _, err := mime.ParseMediaType(mimeType); err != nil {
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("mime type %q", mimeType), Err: err}
	}
	return nil
}

package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vincent-petithory/dataurl"
	"node.town/mindy/recorder"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

type Kind int

const (
	Recorded Kind = iota
	Uploaded
)

func (k Kind) String() string {
	if k == Uploaded {
		return "upload"
	}
	return "recording"
}

// Payload is encoded audio ready for submission. It is not modified after
// construction.
type Payload struct {
	Kind     Kind
	Name     string
	MIMEType string
	Lang     string
	// Data is a base64 data URL.
	Data string
	Size int
}

// Accepted maps file extensions to the audio types a user may upload.
var Accepted = map[string]string{
	".mp3":  "audio/mpeg",
	".mpeg": "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
}

var acceptedTypes = map[string]bool{
	"audio/mp3":   true,
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/webm":  true,
}

// AcceptsType reports whether mimeType is in the upload accept filter.
func AcceptsType(mimeType string) bool {
	return acceptedTypes[strings.ToLower(mimeType)]
}

// TypeOf returns the declared type of a file from its extension.
func TypeOf(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType, ok := Accepted[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Base(path))
	}
	return mimeType, nil
}

func FromRecording(blob recorder.Blob, lang string) Payload {
	return Payload{
		Kind:     Recorded,
		Name:     "recording",
		MIMEType: blob.MIMEType,
		Lang:     lang,
		Data:     encode(blob.Data, blob.MIMEType),
		Size:     len(blob.Data),
	}
}

func FromFile(path, lang string) (Payload, error) {
	mimeType, err := TypeOf(path)
	if err != nil {
		return Payload{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("read audio file: %w", err)
	}
	return FromBytes(filepath.Base(path), data, mimeType, lang)
}

// FromBytes builds an upload payload from bytes whose type was declared by
// the caller.
func FromBytes(name string, data []byte, mimeType, lang string) (Payload, error) {
	if !AcceptsType(mimeType) {
		return Payload{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
	return Payload{
		Kind:     Uploaded,
		Name:     name,
		MIMEType: mimeType,
		Lang:     lang,
		Data:     encode(data, mimeType),
		Size:     len(data),
	}, nil
}

func encode(data []byte, mimeType string) string {
	return dataurl.New(data, mimeType).String()
}

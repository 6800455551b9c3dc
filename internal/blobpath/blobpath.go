// Package blobpath decodes and builds the storage paths the file-content index
// reports for every blob. A decoded path has the shape
//
//	<scheme>://<host>/<container>/<prefix...>/<snippet-id>/<blob-name>
//
// and the snippet identity lives at a fixed segment position that is part of the
// storage layout, not of the path itself. Changing the blob layout means changing
// Layout.SnippetSegment.
package blobpath

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultSnippetSegment is the slash-split position of the snippet identity in
// "https://account/container/prefix/<snippet>/<blob>".
const DefaultSnippetSegment = 5

// minSnippetSegment leaves room for scheme, the empty authority separator, host and container.
const minSnippetSegment = 4

// ErrNotSnippetPath is returned when a decoded path does not match the layout.
var ErrNotSnippetPath = errors.New("not a snippet container path")

// Layout describes where the snippet identity sits inside a decoded storage path.
type Layout struct {
	// SnippetSegment is the index of the snippet identity after splitting the
	// decoded path on "/". Everything after it is the blob name.
	SnippetSegment int
}

// DefaultLayout returns the layout used by the snippet blob containers.
func DefaultLayout() Layout {
	return Layout{SnippetSegment: DefaultSnippetSegment}
}

// Validate checks that the layout can address a container segment.
func (l Layout) Validate() error {
	if l.SnippetSegment < minSnippetSegment {
		return fmt.Errorf("snippet segment must be >= %d, got %d", minSnippetSegment, l.SnippetSegment)
	}
	return nil
}

// PrefixDepth is the number of folder segments between container and snippet.
func (l Layout) PrefixDepth() int {
	return l.SnippetSegment - minSnippetSegment
}

// Path is a decoded storage path split into named segments.
type Path struct {
	Scheme    string   // "https"
	Host      string   // storage account host
	Container string   // blob container
	Prefix    []string // folders between container and snippet
	SnippetID string
	BlobName  string // may contain "/" for nested blobs
}

// String rebuilds the raw (undecoded) path.
func (p Path) String() string {
	parts := make([]string, 0, 5+len(p.Prefix))
	parts = append(parts, p.Scheme+":", "", p.Host, p.Container)
	parts = append(parts, p.Prefix...)
	parts = append(parts, p.SnippetID, p.BlobName)
	return strings.Join(parts, "/")
}

// Encode returns the token form stored in the file-content index.
func (p Path) Encode() string {
	return EncodeToken(p.String())
}

// EncodeToken encodes raw as URL-safe base64 with the '=' padding replaced
// by its count, the form DecodeString tries first.
func EncodeToken(raw string) string {
	padded := base64.URLEncoding.EncodeToString([]byte(raw))
	body := strings.TrimRight(padded, "=")
	return body + strconv.Itoa(len(padded)-len(body))
}

// Parse splits a raw decoded path according to the layout.
func (l Layout) Parse(raw string) (Path, error) {
	if err := l.Validate(); err != nil {
		return Path{}, err
	}

	segs := strings.Split(raw, "/")
	if len(segs) < l.SnippetSegment+2 {
		return Path{}, fmt.Errorf("%w: %q has %d segments, need at least %d",
			ErrNotSnippetPath, raw, len(segs), l.SnippetSegment+2)
	}
	if !strings.HasSuffix(segs[0], ":") || len(segs[0]) < 2 || segs[1] != "" {
		return Path{}, fmt.Errorf("%w: %q has no scheme", ErrNotSnippetPath, raw)
	}

	p := Path{
		Scheme:    strings.TrimSuffix(segs[0], ":"),
		Host:      segs[2],
		Container: segs[3],
		Prefix:    append([]string(nil), segs[minSnippetSegment:l.SnippetSegment]...),
		SnippetID: segs[l.SnippetSegment],
		BlobName:  strings.Join(segs[l.SnippetSegment+1:], "/"),
	}
	if p.Host == "" || p.Container == "" {
		return Path{}, fmt.Errorf("%w: %q has empty host or container", ErrNotSnippetPath, raw)
	}
	if p.SnippetID == "" || p.BlobName == "" {
		return Path{}, fmt.Errorf("%w: %q has empty snippet or blob segment", ErrNotSnippetPath, raw)
	}
	return p, nil
}

// Decode base64-decodes an index storage path and parses it.
func (l Layout) Decode(encoded string) (Path, error) {
	raw, err := DecodeString(encoded)
	if err != nil {
		return Path{}, err
	}
	return l.Parse(raw)
}

// Build assembles a Path for a blob, checking the prefix depth against the layout.
func (l Layout) Build(scheme, host, container string, prefix []string, snippetID, blobName string) (Path, error) {
	if len(prefix) != l.PrefixDepth() {
		return Path{}, fmt.Errorf("layout needs %d prefix segments, got %d", l.PrefixDepth(), len(prefix))
	}
	p := Path{
		Scheme:    scheme,
		Host:      host,
		Container: container,
		Prefix:    prefix,
		SnippetID: snippetID,
		BlobName:  blobName,
	}
	// Round-trip through Parse so built paths obey the same rules as decoded ones.
	return l.Parse(p.String())
}

// DecodeString decodes the base64 variants the index service emits: standard and
// URL-safe alphabets, padded or not, and the token form where a trailing digit
// gives the number of stripped '=' characters. The token form is tried first
// whenever its length and alphabet fit, so an unpadded standard encoding that
// happens to end in '1' is read as a token.
func DecodeString(encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", fmt.Errorf("%w: empty storage path", ErrNotSnippetPath)
	}

	if b, ok := decodeToken(encoded); ok {
		return string(b), nil
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding,
		base64.RawStdEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(encoded); err == nil {
			return string(b), nil
		}
	}

	return "", fmt.Errorf("%w: storage path %q is not base64", ErrNotSnippetPath, encoded)
}

// decodeToken decodes the URL-safe token form: body + digit, where the digit
// restores the body to a whole number of 4-byte blocks.
func decodeToken(encoded string) ([]byte, bool) {
	last := encoded[len(encoded)-1]
	if last < '0' || last > '2' || strings.ContainsAny(encoded, "+/=") {
		return nil, false
	}
	body, pad := encoded[:len(encoded)-1], int(last-'0')
	if (len(body)+pad)%4 != 0 {
		return nil, false
	}
	b, err := base64.URLEncoding.DecodeString(body + strings.Repeat("=", pad))
	if err != nil {
		return nil, false
	}
	return b, true
}

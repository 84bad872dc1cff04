package service

import (
	"errors"
	"fmt"
	"mime"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

var errInvalidUTF8 = errors.New("body is not valid UTF-8")

// decodeBody converts raw in the charset named by the Content-Type header,
// or fallback when the header names none, to a Go string.
func decodeBody(raw []byte, contentType, fallback string) (string, error) {
	name := fallback
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil && params["charset"] != "" {
			name = params["charset"]
		}
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q", name)
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		if !utf8.Valid(raw) {
			return "", errInvalidUTF8
		}
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", name, err)
	}
	return string(out), nil
}

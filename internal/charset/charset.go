// Package charset turns fetched response bodies into UTF-8 text.
//
// The encoding is chosen in three steps: the declared charset (byte order
// mark, Content-Type header, then a <meta> prescan of the first 1024 bytes),
// then statistical detection over the body, then UTF-8.
// Bytes that are invalid in the chosen encoding decode to U+FFFD.
package charset

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// minDetectConfidence is the chardet confidence below which a guess is ignored.
const minDetectConfidence = 30

// prescanBytes matches the window x/net/html/charset inspects for <meta>.
const prescanBytes = 1024

// Decoded is the text of a body together with the encoding used to read it.
type Decoded struct {
	Text     string
	Encoding string
	// Source is "declared", "detected" or "fallback".
	Source string
}

// Decode converts body to UTF-8 using contentType as the declared hint.
func Decode(body []byte, contentType string) Decoded {
	if enc, name, certain := htmlcharset.DetermineEncoding(body, contentType); certain || (enc != encoding.Nop && metaDeclares(body)) {
		return Decoded{Text: decodeWith(enc, body), Encoding: name, Source: "declared"}
	}
	if name := detect(body); name != "" {
		if enc, canonical := htmlcharset.Lookup(name); enc != nil {
			return Decoded{Text: decodeWith(enc, body), Encoding: canonical, Source: "detected"}
		}
	}
	return Decoded{Text: strings.ToValidUTF8(string(body), string(utf8.RuneError)), Encoding: "utf-8", Source: "fallback"}
}

// metaDeclares reports whether the prescan window holds a <meta> charset
// declaration. DetermineEncoding reports meta hits and its own guesses
// alike as uncertain, so this separates the two.
func metaDeclares(body []byte) bool {
	head := bytes.ToLower(body[:min(len(body), prescanBytes)])
	return bytes.Contains(head, []byte("<meta")) && bytes.Contains(head, []byte("charset"))
}

func detect(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil || result.Confidence < minDetectConfidence {
		return ""
	}
	return result.Charset
}

func decodeWith(enc encoding.Encoding, body []byte) string {
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), string(utf8.RuneError))
	}
	// UTF-8 "decoding" is a passthrough in x/text, so scrub it here.
	return strings.ToValidUTF8(string(out), string(utf8.RuneError))
}

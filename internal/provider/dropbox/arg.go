package dropbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"
)

// apiArg encodes v for the Dropbox-API-Arg header. HTTP headers must be
// ASCII, so every non-ASCII rune is written as a JSON \u escape (UTF-16
// surrogate pairs above the BMP).
func apiArg(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("dropbox: encoding api arg: %w", err)
	}

	var b strings.Builder

	for _, r := range string(data) {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}

	return b.String(), nil
}

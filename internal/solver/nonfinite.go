package solver

import "bytes"

var nonFiniteTokens = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// nullNonFinite rewrites the bare NaN, Infinity and -Infinity tokens that Python's json
// module emits into null, leaving string contents alone. A document without them is
// returned as is.
func nullNonFinite(raw []byte) []byte {
	if !bytes.Contains(raw, []byte("NaN")) && !bytes.Contains(raw, []byte("Infinity")) {
		return raw
	}
	out := make([]byte, 0, len(raw))
	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if tok := nonFiniteAt(raw[i:]); tok > 0 {
			out = append(out, "null"...)
			i += tok - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

// nonFiniteAt returns the length of the non-finite token starting b, or 0.
func nonFiniteAt(b []byte) int {
	for _, tok := range nonFiniteTokens {
		if bytes.HasPrefix(b, tok) {
			return len(tok)
		}
	}
	return 0
}

package h2

import (
	"fmt"
	"strconv"
	"strings"
)

// requestVerifier tracks the four request pseudo-headers as fixed slots
// while a decoded header list is scanned, so duplicate detection is O(1).
type requestVerifier struct {
	msg          *Message
	hasMethod    bool
	hasScheme    bool
	hasAuthority bool
	hasPath      bool
	err          string
}

func (v *requestVerifier) setMethod(method string) bool {
	if v.hasMethod {
		v.err = "duplicate :method"
		return false
	}
	if !isToken(method) {
		v.err = "invalid :method"
		return false
	}
	v.hasMethod = true
	v.msg.Method = method
	return true
}

func (v *requestVerifier) setScheme(scheme string) bool {
	if v.hasScheme {
		v.err = "duplicate :scheme"
		return false
	}
	if !isAlpha(scheme) {
		v.err = "invalid :scheme"
		return false
	}
	v.hasScheme = true
	if scheme == schemeHTTPS {
		v.msg.Secure = true
	}
	return true
}

func (v *requestVerifier) setAuthority(authority string) bool {
	if v.hasAuthority {
		v.err = "duplicate :authority"
		return false
	}
	if !isFieldValue(authority) {
		v.err = "invalid :authority"
		return false
	}
	v.hasAuthority = true
	v.msg.Headers.Add("host", authority)
	return true
}

func (v *requestVerifier) setPath(path string) bool {
	if v.hasPath {
		v.err = "duplicate :path"
		return false
	}
	if !isValidURL(path) {
		v.err = "invalid :path"
		return false
	}
	v.hasPath = true
	v.msg.URL = path
	return true
}

// validate enforces the required pseudo-header combinations. CONNECT
// requests carry :method and :authority only; everything else needs
// :method, :scheme and :path.
func (v *requestVerifier) validate() bool {
	if v.err != "" {
		return false
	}
	if v.msg.Method == "CONNECT" {
		if !v.hasMethod || !v.hasAuthority || v.hasScheme || v.hasPath {
			v.err = fmt.Sprintf("malformed CONNECT request m/a/s/p=%v/%v/%v/%v",
				v.hasMethod, v.hasAuthority, v.hasScheme, v.hasPath)
		}
	} else if !v.hasMethod || !v.hasScheme || !v.hasPath {
		v.err = fmt.Sprintf("malformed request m/a/s/p=%v/%v/%v/%v",
			v.hasMethod, v.hasAuthority, v.hasScheme, v.hasPath)
	}
	return v.err == ""
}

// parseHeaderList turns a decoded HPACK field list into a Message,
// enforcing the pseudo-header discipline of RFC 7540 §8.1.2. A non-empty
// error describes a stream-level (HTTP 400) failure.
func parseHeaderList(fields [][2]string, isRequest bool) (*Message, error) {
	msg := &Message{}
	verifier := requestVerifier{msg: msg}
	hasStatus := false
	regularSeen := false

scan:
	for _, f := range fields {
		name, value := f[0], f[1]
		if strings.HasPrefix(name, ":") {
			if regularSeen {
				return nil, fmt.Errorf("pseudo-header %s after regular header", name)
			}
			if isRequest {
				ok := true
				switch name {
				case pseudoMethod:
					ok = verifier.setMethod(value)
				case pseudoScheme:
					ok = verifier.setScheme(value)
				case pseudoAuthority:
					ok = verifier.setAuthority(value)
				case pseudoPath:
					ok = verifier.setPath(value)
				default:
					return nil, fmt.Errorf("invalid pseudo-header %s", name)
				}
				if !ok {
					break scan
				}
			} else {
				if name != pseudoStatus {
					return nil, fmt.Errorf("invalid pseudo-header %s", name)
				}
				if hasStatus {
					return nil, fmt.Errorf("duplicate :status")
				}
				hasStatus = true
				code, err := strconv.Atoi(value)
				if err != nil || code < 100 || code > 999 {
					return nil, fmt.Errorf("malformed status code %q", value)
				}
				msg.StatusCode = code
			}
		} else {
			regularSeen = true
			if name == "connection" {
				return nil, fmt.Errorf("message with connection header")
			}
			nameOk := isValidHeaderName(name)
			valueOk := isFieldValue(value)
			msg.Headers.Add(name, value)
			if !nameOk || !valueOk {
				return nil, fmt.Errorf("bad header field %q", name)
			}
		}
	}

	if isRequest {
		if combined := msg.Headers.Combine("cookie", "; "); combined != "" {
			msg.Headers.Set("cookie", combined)
		}
		verifier.validate()
	} else if !hasStatus {
		return nil, fmt.Errorf("malformed response, missing :status")
	}
	if verifier.err != "" {
		return nil, fmt.Errorf("%s", verifier.err)
	}
	return msg, nil
}

// isToken reports whether s is a non-empty RFC 7230 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// isAlpha reports whether s is non-empty and entirely alphabetic.
func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// isValidURL accepts a non-empty target with no control characters or
// spaces. Full URL syntax belongs to the layer above.
func isValidURL(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= 0x20 || s[i] == 0x7f {
			return false
		}
	}
	return true
}

// isValidHeaderName requires a lowercase token, as HPACK delivers and
// HTTP/2 requires on the wire.
func isValidHeaderName(s string) bool {
	if !isToken(s) {
		return false
	}
	return s == strings.ToLower(s)
}

// isFieldValue accepts RFC 7230 field-content: visible characters, space
// and horizontal tab.
func isFieldValue(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\t' {
			continue
		}
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}

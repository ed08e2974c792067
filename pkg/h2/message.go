package h2

import "strings"

// Headers is an ordered multimap of header fields. Insertion order is
// preserved and name lookups are case-insensitive. Values for a repeated
// name stay distinct entries until coalesced (see Combine).
type Headers struct {
	fields [][2]string
}

// Add appends a field, keeping insertion order.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, [2]string{name, value})
}

// Get returns the first value recorded for name, or "" when absent.
func (h *Headers) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f[0], name) {
			return f[1]
		}
	}
	return ""
}

// Values returns every value recorded for name in insertion order.
func (h *Headers) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f[0], name) {
			out = append(out, f[1])
		}
	}
	return out
}

// Set replaces all entries for name with a single field. The replacement
// takes the position of the first prior entry, or is appended when the
// name was absent.
func (h *Headers) Set(name, value string) {
	out := h.fields[:0]
	replaced := false
	for _, f := range h.fields {
		if strings.EqualFold(f[0], name) {
			if !replaced {
				out = append(out, [2]string{f[0], value})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, [2]string{name, value})
	}
	h.fields = out
}

// Combine joins every value for name with sep, in insertion order.
// Returns "" when the name is absent.
func (h *Headers) Combine(name, sep string) string {
	return strings.Join(h.Values(name), sep)
}

// Len returns the number of fields.
func (h *Headers) Len() int {
	return len(h.fields)
}

// ForEach visits every field in insertion order.
func (h *Headers) ForEach(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f[0], f[1])
	}
}

// Message is the semantic request or response a header block decodes to,
// and the input to GenerateHeader. A message with a non-empty Method is a
// request; otherwise it is a response identified by StatusCode.
//
// Requests carry no explicit scheme field: Secure records whether the
// scheme was https, and egress regenerates :scheme from it.
type Message struct {
	Method     string
	URL        string
	StatusCode int
	Secure     bool
	Headers    Headers
}

// NewRequest builds a request message.
func NewRequest(method, url string) *Message {
	return &Message{Method: method, URL: url}
}

// NewResponse builds a response message.
func NewResponse(statusCode int) *Message {
	return &Message{StatusCode: statusCode}
}

// IsRequest reports whether the message is a request.
func (m *Message) IsRequest() bool {
	return m.Method != ""
}

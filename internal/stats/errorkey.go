package stats

import (
	"strconv"
	"strings"
)

// ErrorKey classifies a failed sample. It is only ever counted, never
// interpreted, so two failures with identical fields share a tally slot.
type ErrorKey struct {
	Result    string
	Code      int // 0 when the failure carried no numeric code
	Traceback string
	Headers   string
	Body      string
}

// NewErrorKey builds an ErrorKey, keeping the code only when it parses as an integer.
func NewErrorKey(result, code, traceback, headers, body string) *ErrorKey {
	key := &ErrorKey{
		Result:    result,
		Traceback: traceback,
		Headers:   headers,
		Body:      body,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(code)); err == nil {
		key.Code = n
	}
	return key
}

// String returns a short single-line label for the error.
func (k ErrorKey) String() string {
	label := k.Result
	if label == "" {
		label = "Error"
	}
	if k.Code != 0 {
		label += " " + strconv.Itoa(k.Code)
	}
	return label
}

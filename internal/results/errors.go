package results

import (
	"fmt"
	"strings"
)

// TruncatedError reports a log that ends before </funkload>, typically
// because the run that produced it is still going or was killed.
type TruncatedError struct {
	Stack []string
	Line  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated result: missing </funkload> at line %d (element stack: %s)",
		e.Line, strings.Join(e.Stack, " > "))
}

// MalformedError reports any other invalid input.
type MalformedError struct {
	Stack []string
	Line  int
	// Hint is a human-readable suggestion, empty when there is nothing useful to add.
	Hint string
	Err  error
}

func (e *MalformedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid bench result at line %d: %v", e.Line, e.Err)
	if len(e.Stack) > 0 {
		fmt.Fprintf(&b, " (element stack: %s)", strings.Join(e.Stack, " > "))
	}
	if e.Hint != "" {
		b.WriteString("; ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

func (e *MalformedError) Unwrap() error { return e.Err }

const (
	hintNotBench = "only results written by a bench run can be reported, not single test runs"
	hintEncoding = "error pages captured during the bench may contain invalid characters; re-encode the file"
)

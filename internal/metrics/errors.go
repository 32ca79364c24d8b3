package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"
)

// errorKind labels a failure that carries no gRPC status, typically one
// raised while dialing an agent before any call was made.
func errorKind(err error) string {
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Context deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "Context canceled"
	case errors.As(err, &opErr):
		return "Network error (" + opErr.Op + ")"
	}
	return typeLabel(fmt.Sprintf("%T", err))
}

// typeLabel turns "*pkg.someTypeName" into "Some Type Name (pkg)".
func typeLabel(typeName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if name == "" {
		return "Unknown error"
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	pkg, base, found := strings.Cut(name, ".")
	if !found {
		pkg, base = "", name
	}
	label := strings.Join(splitWords(base), " ")
	if pkg == "" || pkg == "main" {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, pkg)
}

// splitWords breaks a Go identifier at case and digit boundaries, keeping
// acronyms such as "RPC" whole.
func splitWords(ident string) []string {
	runes := []rune(ident)
	var words []string
	start := 0
	flush := func(end int) {
		if end <= start {
			return
		}
		w := string(runes[start:end])
		if strings.ToUpper(w) != w {
			w = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
		words = append(words, w)
		start = end
	}
	for i := 1; i < len(runes); i++ {
		r, prev := runes[i], runes[i-1]
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		switch {
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsUpper(prev) && nextLower):
			flush(i)
		case unicode.IsDigit(r) && !unicode.IsDigit(prev):
			flush(i)
		}
	}
	flush(len(runes))
	return words
}

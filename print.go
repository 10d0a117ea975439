package elrpc

import (
	"strconv"
	"strings"
)

// Print renders v in canonical S-expression form: no unnecessary whitespace,
// strings double-quoted with escapes for '"', '\\', and control characters.
func Print(v Value) string {
	var sb strings.Builder
	printValue(&sb, v)
	return sb.String()
}

func printValue(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindNil:
		sb.WriteString("nil")
	case KindSymbol:
		sb.WriteString(v.sym)
	case KindInteger:
		sb.WriteString(formatInt64(v.i))
	case KindFloat:
		sb.WriteString(formatFloat(v.f))
	case KindString:
		printStringLiteral(sb, v.s)
	case KindCons:
		printCons(sb, v)
	case KindVector:
		printVector(sb, v)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func printStringLiteral(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			if c < 0x20 {
				sb.WriteString(`\x`)
				sb.WriteByte(hexDigits[(c>>4)&0xf])
				sb.WriteByte(hexDigits[c&0xf])
				continue
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
}

func printCons(sb *strings.Builder, v Value) {
	sb.WriteByte('(')
	cur := v
	first := true
	for {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		printValue(sb, cur.pair.car)
		next := cur.pair.cdr
		switch next.kind {
		case KindNil:
			sb.WriteByte(')')
			return
		case KindCons:
			cur = next
			continue
		default:
			sb.WriteString(" . ")
			printValue(sb, next)
			sb.WriteByte(')')
			return
		}
	}
}

func printVector(sb *strings.Builder, v Value) {
	sb.WriteByte('[')
	for i, item := range v.vec {
		if i > 0 {
			sb.WriteByte(' ')
		}
		printValue(sb, item)
	}
	sb.WriteByte(']')
}

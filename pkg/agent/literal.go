package agent

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parseLiteral reads a loosely written data literal: JSON plus single-quoted strings,
// tuples, trailing commas, and True/False/None. Numbers without a fraction or exponent
// become int64.
func parseLiteral(s string) (any, error) {
	lp := &literalParser{src: []rune(s)}
	lp.skipSpace()
	v, err := lp.value()
	if err != nil {
		return nil, err
	}
	lp.skipSpace()
	if lp.pos != len(lp.src) {
		return nil, fmt.Errorf("unexpected trailing input at offset %d", lp.pos)
	}
	return v, nil
}

type literalParser struct {
	src []rune
	pos int
}

func (lp *literalParser) skipSpace() {
	for lp.pos < len(lp.src) && unicode.IsSpace(lp.src[lp.pos]) {
		lp.pos++
	}
}

func (lp *literalParser) peek() rune {
	if lp.pos >= len(lp.src) {
		return 0
	}
	return lp.src[lp.pos]
}

func (lp *literalParser) value() (any, error) {
	switch r := lp.peek(); {
	case r == 0:
		return nil, fmt.Errorf("unexpected end of input")
	case r == '{':
		return lp.object()
	case r == '[':
		return lp.sequence(']')
	case r == '(':
		return lp.sequence(')')
	case r == '"' || r == '\'':
		return lp.str()
	case r == '-' || r == '+' || r == '.' || unicode.IsDigit(r):
		return lp.number()
	case unicode.IsLetter(r):
		return lp.word()
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", r, lp.pos)
	}
}

func (lp *literalParser) sequence(closer rune) (any, error) {
	lp.pos++
	out := []any{}
	for {
		lp.skipSpace()
		if lp.peek() == closer {
			lp.pos++
			return out, nil
		}
		v, err := lp.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		lp.skipSpace()
		switch lp.peek() {
		case ',':
			lp.pos++
		case closer:
		default:
			return nil, fmt.Errorf("expected ',' or %q at offset %d", closer, lp.pos)
		}
	}
}

func (lp *literalParser) object() (any, error) {
	lp.pos++
	out := map[string]any{}
	for {
		lp.skipSpace()
		if lp.peek() == '}' {
			lp.pos++
			return out, nil
		}
		k, err := lp.value()
		if err != nil {
			return nil, err
		}
		lp.skipSpace()
		if lp.peek() != ':' {
			return nil, fmt.Errorf("expected ':' at offset %d", lp.pos)
		}
		lp.pos++
		lp.skipSpace()
		v, err := lp.value()
		if err != nil {
			return nil, err
		}
		out[fmt.Sprint(k)] = v
		lp.skipSpace()
		switch lp.peek() {
		case ',':
			lp.pos++
		case '}':
		default:
			return nil, fmt.Errorf("expected ',' or '}' at offset %d", lp.pos)
		}
	}
}

func (lp *literalParser) str() (any, error) {
	quote := lp.src[lp.pos]
	lp.pos++
	var sb strings.Builder
	for lp.pos < len(lp.src) {
		r := lp.src[lp.pos]
		lp.pos++
		switch r {
		case quote:
			return sb.String(), nil
		case '\\':
			if lp.pos >= len(lp.src) {
				return nil, fmt.Errorf("unterminated escape")
			}
			e := lp.src[lp.pos]
			lp.pos++
			switch e {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			default:
				sb.WriteRune(e)
			}
		default:
			sb.WriteRune(r)
		}
	}
	return nil, fmt.Errorf("unterminated string")
}

func (lp *literalParser) number() (any, error) {
	start := lp.pos
	for lp.pos < len(lp.src) && strings.ContainsRune("+-.eE0123456789_", lp.src[lp.pos]) {
		lp.pos++
	}
	text := strings.ReplaceAll(string(lp.src[start:lp.pos]), "_", "")
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return f, nil
}

func (lp *literalParser) word() (any, error) {
	start := lp.pos
	for lp.pos < len(lp.src) && (unicode.IsLetter(lp.src[lp.pos]) || lp.src[lp.pos] == '_') {
		lp.pos++
	}
	switch w := string(lp.src[start:lp.pos]); w {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected word %q", w)
	}
}

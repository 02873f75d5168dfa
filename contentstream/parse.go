package contentstream

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

var ErrSyntax = errors.New("content stream syntax error")

// Parse reads stream into operations. Dictionaries (marked-content
// properties) and inline image data are skipped.
func Parse(stream []byte) ([]Operation, error) {
	var ops []Operation
	err := scan(stream, func(op Operation) error {
		ops = append(ops, op)
		return nil
	})
	return ops, err
}

type scanner struct {
	src []byte
	pos int
}

func scan(src []byte, emit func(Operation) error) error {
	s := &scanner{src: src}
	var stack []Operand
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			break
		}
		operand, operator, err := s.next()
		if err != nil {
			return err
		}
		if operand != nil {
			stack = append(stack, operand)
			continue
		}
		if operator == "" {
			continue
		}
		if operator == "BI" {
			s.skipInlineImage()
			stack = stack[:0]
			continue
		}
		if err := emit(Operation{Operator: operator, Operands: stack}); err != nil {
			return err
		}
		stack = nil
	}
	if len(stack) > 0 {
		return fmt.Errorf("%w: dangling operands: %d", ErrSyntax, len(stack))
	}
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '%' {
			for s.pos < len(s.src) && s.src[s.pos] != '\n' && s.src[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		s.pos++
	}
}

func (s *scanner) regular() string {
	start := s.pos
	for s.pos < len(s.src) && !isSpace(s.src[s.pos]) && !isDelim(s.src[s.pos]) {
		s.pos++
	}
	return string(s.src[start:s.pos])
}

// next returns either an operand or an operator keyword. Skipped constructs
// return neither.
func (s *scanner) next() (Operand, string, error) {
	c := s.src[s.pos]
	switch {
	case c == '/':
		s.pos++
		return NameOperand{Value: s.regular()}, "", nil
	case c == '(':
		str, err := s.literal()
		return StringOperand{Value: str}, "", err
	case c == '<' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '<':
		return nil, "", s.skipDict()
	case c == '<':
		str, err := s.hexString()
		return StringOperand{Value: str}, "", err
	case c == '[':
		s.pos++
		arr := ArrayOperand{}
		for {
			s.skipSpace()
			if s.pos >= len(s.src) {
				return nil, "", fmt.Errorf("%w: unterminated array", ErrSyntax)
			}
			if s.src[s.pos] == ']' {
				s.pos++
				return arr, "", nil
			}
			v, kw, err := s.next()
			if err != nil {
				return nil, "", err
			}
			if kw != "" {
				return nil, "", fmt.Errorf("%w: operator %q inside array", ErrSyntax, kw)
			}
			if v != nil {
				arr.Values = append(arr.Values, v)
			}
		}
	case c == ']' || c == ')' || c == '>' || c == '{' || c == '}':
		return nil, "", fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, s.pos)
	}
	tok := s.regular()
	if num, err := strconv.ParseFloat(tok, 64); err == nil {
		return NumberOperand{Value: num}, "", nil
	}
	return nil, tok, nil
}

func (s *scanner) literal() ([]byte, error) {
	s.pos++
	depth := 1
	var out []byte
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.src) {
				return nil, fmt.Errorf("%w: dangling escape", ErrSyntax)
			}
			e := s.src[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r', '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '7'; k++ {
						v = v*8 + int(s.src[s.pos]-'0')
						s.pos++
					}
					out = append(out, byte(v))
					continue
				}
				out = append(out, e)
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return nil, fmt.Errorf("%w: unterminated string", ErrSyntax)
}

func (s *scanner) hexString() ([]byte, error) {
	s.pos++
	var digits []byte
	for s.pos < len(s.src) && s.src[s.pos] != '>' {
		if !isSpace(s.src[s.pos]) {
			digits = append(digits, s.src[s.pos])
		}
		s.pos++
	}
	if s.pos >= len(s.src) {
		return nil, fmt.Errorf("%w: unterminated hex string", ErrSyntax)
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return out, nil
}

func (s *scanner) skipDict() error {
	depth := 0
	for s.pos+1 < len(s.src) {
		switch {
		case s.src[s.pos] == '<' && s.src[s.pos+1] == '<':
			depth++
			s.pos += 2
		case s.src[s.pos] == '>' && s.src[s.pos+1] == '>':
			depth--
			s.pos += 2
			if depth == 0 {
				return nil
			}
		case s.src[s.pos] == '(':
			if _, err := s.literal(); err != nil {
				return err
			}
		default:
			s.pos++
		}
	}
	return fmt.Errorf("%w: unterminated dictionary", ErrSyntax)
}

func (s *scanner) skipInlineImage() {
	for s.pos+2 < len(s.src) {
		if s.src[s.pos] == 'E' && s.src[s.pos+1] == 'I' && isSpace(s.src[s.pos-1]) &&
			(s.pos+2 == len(s.src) || isSpace(s.src[s.pos+2])) {
			s.pos += 2
			return
		}
		s.pos++
	}
	s.pos = len(s.src)
}

package responder

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	errDivisionByZero = errors.New("division by zero")

	arithPrefix  = regexp.MustCompile(`^(what is|what's|whats|calculate|compute|evaluate|solve|how much is)\s+`)
	arithAllowed = regexp.MustCompile(`^[0-9\s+\-*/().]+$`)
	arithOp      = regexp.MustCompile(`[0-9)]\s*[+\-*/]\s*[0-9(.\-]`)
)

// arithmeticExpression extracts a bare arithmetic expression from a query
// such as "what is 2 + 2?". Only digits, whitespace and +-*/(). survive.
func arithmeticExpression(query string) (string, bool) {
	expr := strings.ToLower(strings.TrimSpace(query))
	expr = strings.TrimRight(expr, "?!= ")
	expr = arithPrefix.ReplaceAllString(expr, "")
	expr = strings.TrimSpace(expr)

	if expr == "" || !arithAllowed.MatchString(expr) || !arithOp.MatchString(expr) {
		return "", false
	}
	return expr, true
}

// evaluate parses and computes an arithmetic expression with the usual
// precedence rules
func evaluate(expr string) (decimal.Decimal, error) {
	p := &arithParser{input: strings.ReplaceAll(expr, " ", "")}

	value, err := p.parseExpr()
	if err != nil {
		return decimal.Zero, err
	}
	if p.pos != len(p.input) {
		return decimal.Zero, fmt.Errorf("unexpected %q at %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

type arithParser struct {
	input string
	pos   int
}

func (p *arithParser) peek() byte {
	if p.pos < len(p.input) {
		return p.input[p.pos]
	}
	return 0
}

// expr := term (('+' | '-') term)*
func (p *arithParser) parseExpr() (decimal.Decimal, error) {
	left, err := p.parseTerm()
	if err != nil {
		return decimal.Zero, err
	}

	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Add(right)
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Sub(right)
		default:
			return left, nil
		}
	}
}

// term := factor (('*' | '/') factor)*
func (p *arithParser) parseTerm() (decimal.Decimal, error) {
	left, err := p.parseFactor()
	if err != nil {
		return decimal.Zero, err
	}

	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Mul(right)
		case '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			if right.IsZero() {
				return decimal.Zero, errDivisionByZero
			}
			left = left.Div(right)
		default:
			return left, nil
		}
	}
}

// factor := '-' factor | '(' expr ')' | number
func (p *arithParser) parseFactor() (decimal.Decimal, error) {
	switch c := p.peek(); {
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		return v.Neg(), err
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return decimal.Zero, err
		}
		if p.peek() != ')' {
			return decimal.Zero, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	default:
		return p.parseNumber()
	}
}

func (p *arithParser) parseNumber() (decimal.Decimal, error) {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == '.' || (p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
		p.pos++
	}
	if start == p.pos {
		return decimal.Zero, fmt.Errorf("expected number at %d", start)
	}
	return decimal.NewFromString(p.input[start:p.pos])
}

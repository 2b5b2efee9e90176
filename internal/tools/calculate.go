package tools

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/toolbridge/toolbridge/internal/protocol"
)

// CalculateTool evaluates arithmetic expressions with a grammar-restricted
// recursive-descent parser. No identifiers, no function calls, no assignment —
// only numeric literals, + - * /, parentheses and unary minus, so the tool can
// never be steered into evaluating code.
func CalculateTool() Tool {
	return Tool{
		Name:        "calculate",
		Description: "Evaluate a mathematical expression, e.g. 2+3*4. Supports + - * / and parentheses.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"expression": map[string]interface{}{
					"type":        "string",
					"description": "The arithmetic expression to evaluate",
				},
			},
			"required": []string{"expression"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			expr, _ := input["expression"].(string)
			value, err := evalExpression(expr)
			if err != nil {
				return "", err
			}
			out := map[string]interface{}{
				"expression": expr,
				"result":     numericResult(value),
			}
			b, _ := json.Marshal(out)
			return string(b), nil
		},
	}
}

// numericResult keeps integral results integral on the wire: 2+2*3 is 8,
// not 8.0.
func numericResult(v float64) interface{} {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return int64(v)
	}
	return v
}

// evalExpression parses and evaluates the grammar
//
//	expr   = term   { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "-" factor | "(" expr ")"
func evalExpression(input string) (float64, error) {
	p := &exprParser{src: input}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return 0, protocol.Failf(protocol.KindParseError, "unexpected character %q at position %d", p.src[p.pos], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, protocol.Failf(protocol.KindDomainError, "result is not a finite number")
	}
	return v, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '+' && c != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if c == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '*' && c != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if c == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, protocol.Failf(protocol.KindDomainError, "division by zero")
			}
			left /= right
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, protocol.Failf(protocol.KindParseError, "unexpected end of expression")
	}
	switch {
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if c, ok := p.peek(); !ok || c != ')' {
			return 0, protocol.Failf(protocol.KindParseError, "missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case unicode.IsDigit(rune(c)) || c == '.':
		return p.parseNumber()
	}
	return 0, protocol.Failf(protocol.KindParseError, "unexpected character %q at position %d", c, p.pos)
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && (unicode.IsDigit(rune(p.src[p.pos])) || p.src[p.pos] == '.') {
		p.pos++
	}
	lit := p.src[start:p.pos]
	if strings.Count(lit, ".") > 1 {
		return 0, protocol.Failf(protocol.KindParseError, "malformed number %q", lit)
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, protocol.Failf(protocol.KindParseError, "malformed number %q", lit)
	}
	return v, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MathSolver evaluates arithmetic expressions found in the query text.
// Expressions are parsed and evaluated directly; nothing in the query is
// ever executed.
type MathSolver struct{}

// NewMathSolver creates the math solver service.
func NewMathSolver() *MathSolver { return &MathSolver{} }

func (s *MathSolver) Name() string        { return "MathSolverService" }
func (s *MathSolver) Description() string { return "Solve mathematical problems and equations" }
func (s *MathSolver) Type() Type          { return TypeMathSolver }

var exprPattern = regexp.MustCompile(`[\d+\-*/().\s]+`)

func (s *MathSolver) Process(_ context.Context, req *Request) *Response {
	problemType := req.StringParam("type", "general")

	var results []string
	for _, candidate := range exprPattern.FindAllString(req.Query, -1) {
		expr := strings.TrimSpace(candidate)
		if expr == "" || !strings.ContainsAny(expr, "0123456789") {
			continue
		}
		value, err := evalExpression(expr)
		if err != nil {
			continue
		}
		results = append(results, fmt.Sprintf("%s = %s", expr, formatNumber(value)))
	}

	var content string
	if len(results) > 0 {
		content = "Mathematical calculations:\n" + strings.Join(results, "\n")
	} else {
		content = fmt.Sprintf("I can help with mathematical problems. The query '%s' doesn't contain simple arithmetic expressions I can evaluate directly.", req.Query)
	}

	return &Response{
		Content: content,
		Metadata: map[string]any{
			"service":           s.Name(),
			"query":             req.Query,
			"problem_type":      problemType,
			"expressions_found": len(results),
		},
		Success: true,
	}
}

func (s *MathSolver) Capabilities() map[string]any {
	return map[string]any{
		"parameters": map[string]any{
			"type": map[string]any{
				"type":        "string",
				"default":     "general",
				"description": "Type of mathematical problem",
			},
		},
		"supported_queries": []string{"arithmetic", "basic algebra", "numerical calculations"},
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// exprParser is a recursive-descent parser for +,-,*,/ with parentheses and
// unary minus. Depth is bounded so pathological nesting cannot blow the
// stack.
type exprParser struct {
	input string
	pos   int
	depth int
}

const maxExprDepth = 64

func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected character at position %d", p.pos)
	}
	return v, nil
}

func (p *exprParser) parseExpr() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	p.skipSpaces()
	switch c := p.peek(); {
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
		p.skipSpaces()
		if p.peek() != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	default:
		return 0, fmt.Errorf("unexpected character at position %d", p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	seenDot := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '.' {
			if seenDot {
				break
			}
			seenDot = true
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) enter() error {
	p.depth++
	if p.depth > maxExprDepth {
		return errors.New("expression too deeply nested")
	}
	return nil
}

func (p *exprParser) leave() { p.depth-- }

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

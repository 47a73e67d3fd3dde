// Package parser turns instruction source text into kernel.Instruction
// values. It understands both the parenthesized syntax (DECLARE(x, 5)) and
// the space-separated syntax (DECLARE x 5), transliterated from
// original_source/Project1/Instruction.cpp's parseInstruction regex table.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"regexp"

	"github.com/mike-jgo/csopesy-mp/internal/kernel"
)

var (
	declareRegex      = regexp.MustCompile(`^DECLARE\((\w+),\s*(-?\d+)\)$`)
	addRegex          = regexp.MustCompile(`^ADD\((\w+),\s*([\w-]+),\s*([\w-]+)\)$`)
	subRegex          = regexp.MustCompile(`^SUBTRACT\((\w+),\s*([\w-]+),\s*([\w-]+)\)$`)
	printRegex        = regexp.MustCompile(`^PRINT\((.*)\)$`)
	sleepRegex        = regexp.MustCompile(`^SLEEP\((\d+)\)$`)
	forRegex          = regexp.MustCompile(`^FOR\(\[([^\]]+)\],\s*(\d+)\)$`)
	readRegex         = regexp.MustCompile(`^READ\((\w+),\s*(0x[0-9a-fA-F]+|\d+)\)$`)
	writeRegex        = regexp.MustCompile(`^WRITE\((0x[0-9a-fA-F]+|\d+),\s*([a-zA-Z0-9_]+)\)$`)
	declareSpaceRegex = regexp.MustCompile(`^DECLARE\s+(\w+)\s+(-?\d+)$`)
	addSpaceRegex     = regexp.MustCompile(`^ADD\s+(\w+)\s+([\w-]+)\s+([\w-]+)$`)
	subSpaceRegex     = regexp.MustCompile(`^SUBTRACT\s+(\w+)\s+([\w-]+)\s+([\w-]+)$`)
	readSpaceRegex    = regexp.MustCompile(`^READ\s+(\w+)\s+(0x[0-9a-fA-F]+|\d+)$`)
	writeSpaceRegex   = regexp.MustCompile(`^WRITE\s+(0x[0-9a-fA-F]+|\d+)\s+([a-zA-Z0-9_]+)$`)
	sleepSpaceRegex   = regexp.MustCompile(`^SLEEP\s+(\d+)$`)
)

// ParseError reports which line of source failed to parse.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parser: line %d: unrecognized instruction %q", e.Line, e.Text)
}

// ParseProgram parses one instruction per non-empty line.
func ParseProgram(source string) ([]kernel.Instruction, error) {
	var program []kernel.Instruction
	for i, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in, err := ParseOne(line)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Text: line}
		}
		program = append(program, in)
	}
	return program, nil
}

// ParseOne parses a single instruction, either syntax.
func ParseOne(line string) (kernel.Instruction, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("parser: empty instruction")
	}

	if m := declareRegex.FindStringSubmatch(line); m != nil {
		return newDeclare(m[1], m[2])
	}
	if m := addRegex.FindStringSubmatch(line); m != nil {
		return newAdd(m[1], m[2], m[3]), nil
	}
	if m := subRegex.FindStringSubmatch(line); m != nil {
		return newSubtract(m[1], m[2], m[3]), nil
	}
	if m := printRegex.FindStringSubmatch(line); m != nil {
		return newPrint(strings.TrimSpace(m[1])), nil
	}
	if m := sleepRegex.FindStringSubmatch(line); m != nil {
		return newSleep(m[1])
	}
	if m := forRegex.FindStringSubmatch(line); m != nil {
		return newFor(m[1], m[2])
	}
	if m := readRegex.FindStringSubmatch(line); m != nil {
		return newRead(m[1], m[2])
	}
	if m := writeRegex.FindStringSubmatch(line); m != nil {
		return newWrite(m[1], m[2])
	}
	if m := declareSpaceRegex.FindStringSubmatch(line); m != nil {
		return newDeclare(m[1], m[2])
	}
	if m := addSpaceRegex.FindStringSubmatch(line); m != nil {
		return newAdd(m[1], m[2], m[3]), nil
	}
	if m := subSpaceRegex.FindStringSubmatch(line); m != nil {
		return newSubtract(m[1], m[2], m[3]), nil
	}
	if m := readSpaceRegex.FindStringSubmatch(line); m != nil {
		return newRead(m[1], m[2])
	}
	if m := writeSpaceRegex.FindStringSubmatch(line); m != nil {
		return newWrite(m[1], m[2])
	}
	if m := sleepSpaceRegex.FindStringSubmatch(line); m != nil {
		return newSleep(m[1])
	}

	return nil, fmt.Errorf("parser: unrecognized instruction %q", line)
}

func newDeclare(variable, valStr string) (kernel.Instruction, error) {
	v, err := strconv.Atoi(valStr)
	if err != nil {
		return nil, fmt.Errorf("parser: bad DECLARE value %q: %w", valStr, err)
	}
	return &kernel.DeclareInstruction{Var: variable, Value: clampUint16(v)}, nil
}

func newAdd(dest, op1, op2 string) kernel.Instruction {
	return &kernel.AddInstruction{Dest: dest, Src1: operand(op1), Src2: operand(op2)}
}

func newSubtract(dest, op1, op2 string) kernel.Instruction {
	return &kernel.SubtractInstruction{Dest: dest, Src1: operand(op1), Src2: operand(op2)}
}

func newPrint(expr string) kernel.Instruction {
	return &kernel.PrintInstruction{Parts: splitPrintExpr(expr)}
}

func newSleep(durStr string) (kernel.Instruction, error) {
	d, err := strconv.Atoi(durStr)
	if err != nil {
		return nil, fmt.Errorf("parser: bad SLEEP duration %q: %w", durStr, err)
	}
	return &kernel.SleepInstruction{Ticks: d}, nil
}

func newFor(body, repeatsStr string) (kernel.Instruction, error) {
	repeats, err := strconv.Atoi(repeatsStr)
	if err != nil {
		return nil, fmt.Errorf("parser: bad FOR repeat count %q: %w", repeatsStr, err)
	}
	var sub []kernel.Instruction
	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		in, err := ParseOne(part)
		if err != nil {
			return nil, err
		}
		sub = append(sub, in)
	}
	return &kernel.ForInstruction{Body: sub, Repeats: repeats}, nil
}

func newRead(variable, addrStr string) (kernel.Instruction, error) {
	addr, err := parseAddress(addrStr)
	if err != nil {
		return nil, err
	}
	return &kernel.ReadInstruction{Var: variable, Addr: addr}, nil
}

func newWrite(addrStr, valStr string) (kernel.Instruction, error) {
	addr, err := parseAddress(addrStr)
	if err != nil {
		return nil, err
	}
	return &kernel.WriteInstruction{Addr: addr, Value: operand(valStr)}, nil
}

// parseAddress reads a 0x-prefixed token as hex and any other token as
// decimal (a leading zero does not make it octal).
func parseAddress(token string) (int, error) {
	base, digits := 10, token
	if strings.HasPrefix(token, "0x") {
		base, digits = 16, token[2:]
	}
	v, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return 0, fmt.Errorf("parser: bad address %q: %w", token, err)
	}
	return int(v), nil
}

// operand classifies a token as a literal integer or a variable reference,
// mirroring Instruction.cpp's getValueFromMemory fallback order.
func operand(token string) kernel.Operand {
	if v, err := strconv.Atoi(token); err == nil {
		return kernel.Operand{IsLiteral: true, Literal: clampUint16(v)}
	}
	return kernel.Operand{Var: token}
}

func clampUint16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

// splitPrintExpr splits a PRINT expression on '+', ignoring '+' inside
// single-quoted substrings, and classifies each resulting part as literal
// text or a variable reference.
func splitPrintExpr(expr string) []kernel.PrintPart {
	var parts []kernel.PrintPart
	var cur strings.Builder
	inStr := false

	flush := func() {
		tok := strings.TrimSpace(cur.String())
		cur.Reset()
		if tok == "" {
			return
		}
		if len(tok) >= 2 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
			parts = append(parts, kernel.PrintPart{Literal: true, Text: tok[1 : len(tok)-1]})
			return
		}
		parts = append(parts, kernel.PrintPart{Var: tok})
	}

	for _, c := range expr {
		switch {
		case c == '\'':
			inStr = !inStr
			cur.WriteRune(c)
		case c == '+' && !inStr:
			flush()
		default:
			cur.WriteRune(c)
		}
	}
	flush()
	return parts
}

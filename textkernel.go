package halorbits

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TextKernel holds the variables assigned in the data sections of a NAIF text kernel.
// Values are kept as raw tokens: numbers (possibly with a Fortran `D` exponent), quoted strings and @dates.
type TextKernel map[string][]string

// ParseTextKernel reads the `\begindata` sections of a text kernel.
func ParseTextKernel(r io.Reader) (TextKernel, error) {
	tk := make(TextKernel)
	scanner := bufio.NewScanner(r)
	inData := false
	var data strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case `\begindata`:
			inData = true
			continue
		case `\begintext`:
			inData = false
			continue
		}
		if inData {
			data.WriteString(line)
			data.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	tokens := tokenize(data.String())
	for i := 0; i < len(tokens); {
		if i+2 > len(tokens) {
			return nil, fmt.Errorf("dangling token `%s` in text kernel", tokens[i])
		}
		name, op := tokens[i], tokens[i+1]
		if op != "=" && op != "+=" {
			return nil, fmt.Errorf("expected assignment after `%s`, got `%s`", name, op)
		}
		i += 2
		var values []string
		if i < len(tokens) && tokens[i] == "(" {
			i++
			for i < len(tokens) && tokens[i] != ")" {
				values = append(values, tokens[i])
				i++
			}
			if i == len(tokens) {
				return nil, fmt.Errorf("unterminated value list for `%s`", name)
			}
			i++ // Skip the closing parenthesis.
		} else if i < len(tokens) {
			values = append(values, tokens[i])
			i++
		}
		if op == "+=" {
			tk[name] = append(tk[name], values...)
		} else {
			tk[name] = values
		}
	}
	return tk, nil
}

// tokenize splits the data on whitespace and commas, keeping parentheses, assignments and quoted strings.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			flush()
			j := i + 1
			for j < len(s) && s[j] != '\'' {
				j++
			}
			tokens = append(tokens, s[i+1:min(j, len(s))])
			i = j
		case c == '(' || c == ')':
			flush()
			tokens = append(tokens, string(c))
		case c == '+' && i+1 < len(s) && s[i+1] == '=' && cur.Len() == 0:
			tokens = append(tokens, "+=")
			i++
		case c == '=':
			flush()
			tokens = append(tokens, "=")
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// Float returns the first value of the variable as a float.
func (tk TextKernel) Float(name string) (float64, bool) {
	vals, found := tk[name]
	if !found || len(vals) == 0 {
		return 0, false
	}
	f, err := parseFortranFloat(vals[0])
	return f, err == nil
}

// readTextKernel parses the text kernel at the provided path.
func readTextKernel(path string) (TextKernel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrKernelNotFound, path)
	}
	defer f.Close()
	return ParseTextKernel(f)
}

// kernelPool is the part of the pure Go backends which understands NAIF text kernels.
type kernelPool struct {
	ts   *TimeScale
	vars TextKernel
}

func newKernelPool() kernelPool {
	return kernelPool{ts: DefaultTimeScale(), vars: make(TextKernel)}
}

// furnshText loads leapseconds and constants text kernels. It returns false when the kernel is not a text kernel
// this pool knows about, leaving it to the backend.
func (p *kernelPool) furnshText(path string) (bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tls":
		tk, err := readTextKernel(path)
		if err != nil {
			return true, err
		}
		ts, err := timeScaleFromKernel(tk)
		if err != nil {
			return true, fmt.Errorf("%s: %w", path, err)
		}
		p.ts = ts
		p.merge(tk)
		return true, nil
	case ".tpc":
		tk, err := readTextKernel(path)
		if err != nil {
			return true, err
		}
		p.merge(tk)
		return true, nil
	case ".tf", ".tk":
		// Frame kernels define dynamic frames which only the SPICE toolkit evaluates.
		return true, fmt.Errorf("%w: frame kernel %s requires the SPICE backend", ErrUnsupportedKernel, path)
	}
	return false, nil
}

func (p *kernelPool) merge(tk TextKernel) {
	for name, vals := range tk {
		p.vars[name] = vals
	}
}

// ET2UTC implements the Ephemeris interface for the pure Go backends.
func (p *kernelPool) ET2UTC(et Epoch) (string, error) {
	return FormatUTC(p.ts.FromET(et)), nil
}

// UTC2ET implements the Ephemeris interface for the pure Go backends.
func (p *kernelPool) UTC2ET(utc string) (Epoch, error) {
	t, err := ParseUTC(utc)
	if err != nil {
		return 0, err
	}
	return p.ts.ToET(t), nil
}

package tasks

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// pathTransform maps icon coordinates into font units: x is shifted and
// scaled, y is additionally flipped because font outlines grow upwards.
type pathTransform struct {
	minX, minY float64
	height     float64
	scale      float64
}

func (t pathTransform) x(v float64) float64 { return (v - t.minX) * t.scale }
func (t pathTransform) y(v float64) float64 { return (t.height - (v - t.minY)) * t.scale }

// argument counts per path command
var pathArity = map[byte]int{
	'M': 2, 'L': 2, 'H': 1, 'V': 1, 'C': 6, 'S': 4, 'Q': 4, 'T': 2, 'A': 7, 'Z': 0,
}

// transformPath rewrites SVG path data with t. Absolute and relative
// commands keep their form; relative y offsets change sign and arcs swap
// their sweep direction.
func transformPath(d string, t pathTransform) (string, error) {
	s := &pathScanner{src: d}
	var out []string

	for {
		s.skipSeparators()
		if s.done() {
			break
		}

		cmd := s.src[s.pos]
		upper := cmd &^ 0x20
		arity, ok := pathArity[upper]
		if !ok {
			return "", fmt.Errorf("unexpected %q at offset %d", cmd, s.pos)
		}
		s.pos++
		relative := cmd != upper

		if arity == 0 {
			out = append(out, string(cmd))
			continue
		}

		var groups []string
		for {
			s.skipSeparators()
			if s.done() || !s.atNumber() {
				break
			}
			args, err := s.args(upper, arity)
			if err != nil {
				return "", err
			}
			groups = append(groups, formatArgs(transformArgs(upper, relative, args, t)))
		}
		if len(groups) == 0 {
			return "", fmt.Errorf("command %q without arguments", cmd)
		}
		out = append(out, string(cmd)+strings.Join(groups, " "))
	}

	return strings.Join(out, ""), nil
}

func transformArgs(cmd byte, relative bool, a []float64, t pathTransform) []float64 {
	px := func(v float64) float64 {
		if relative {
			return v * t.scale
		}
		return t.x(v)
	}
	py := func(v float64) float64 {
		if relative {
			return -v * t.scale
		}
		return t.y(v)
	}

	switch cmd {
	case 'H':
		return []float64{px(a[0])}
	case 'V':
		return []float64{py(a[0])}
	case 'A':
		return []float64{a[0] * t.scale, a[1] * t.scale, -a[2], a[3], 1 - a[4], px(a[5]), py(a[6])}
	default:
		out := make([]float64, len(a))
		for i := 0; i < len(a); i += 2 {
			out[i] = px(a[i])
			out[i+1] = py(a[i+1])
		}
		return out
	}
}

func formatArgs(args []float64) string {
	parts := make([]string, len(args))
	for i, v := range args {
		v = math.Round(v*1000) / 1000
		if v == 0 {
			v = 0 // no "-0"
		}
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

type pathScanner struct {
	src string
	pos int
}

func (s *pathScanner) done() bool { return s.pos >= len(s.src) }

func (s *pathScanner) skipSeparators() {
	for !s.done() && strings.IndexByte(" \t\r\n,", s.src[s.pos]) >= 0 {
		s.pos++
	}
}

func (s *pathScanner) atNumber() bool {
	c := s.src[s.pos]
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

func (s *pathScanner) args(cmd byte, n int) ([]float64, error) {
	args := make([]float64, n)
	for i := 0; i < n; i++ {
		s.skipSeparators()
		if s.done() {
			return nil, fmt.Errorf("command %q: expected %d arguments", cmd, n)
		}
		var err error
		if cmd == 'A' && (i == 3 || i == 4) {
			args[i], err = s.flag()
		} else {
			args[i], err = s.number()
		}
		if err != nil {
			return nil, err
		}
	}
	return args, nil
}

// flag reads an arc flag, which may be written without separators.
func (s *pathScanner) flag() (float64, error) {
	switch s.src[s.pos] {
	case '0':
		s.pos++
		return 0, nil
	case '1':
		s.pos++
		return 1, nil
	}
	return 0, fmt.Errorf("invalid arc flag at offset %d", s.pos)
}

func (s *pathScanner) number() (float64, error) {
	start := s.pos
	if c := s.src[s.pos]; c == '-' || c == '+' {
		s.pos++
	}
	seenDot, seenExp := false, false
	for !s.done() {
		c := s.src[s.pos]
		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && !seenExp:
			seenExp = true
			if s.pos+1 < len(s.src) && (s.src[s.pos+1] == '-' || s.src[s.pos+1] == '+') {
				s.pos++
			}
		default:
			return s.parse(start)
		}
		s.pos++
	}
	return s.parse(start)
}

func (s *pathScanner) parse(start int) (float64, error) {
	v, err := strconv.ParseFloat(s.src[start:s.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q at offset %d", s.src[start:s.pos], start)
	}
	return v, nil
}

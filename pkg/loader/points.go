package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/cloud"
)

// ReadPoints parses an XYZ or PTS text point buffer. Every data line is
// "x y z" optionally followed by "intensity" and "r g b"; PTS files lead
// with a point-count line, which is detected and used to presize the
// buffer. Blank lines and #-comments are skipped. Attribute columns
// pass through untouched.
func ReadPoints(r io.Reader) (*cloud.Cloud, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var pts []cloud.Point
	lineNo := 0
	first := true
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		// A PTS header is a lone integer count before the first point.
		if first {
			first = false
			if len(fields) == 1 {
				if n, err := strconv.Atoi(fields[0]); err == nil && n >= 0 {
					pts = make([]cloud.Point, 0, n)
					continue
				}
			}
		}

		p, err := parsePoint(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading point buffer: %w", err)
	}
	return cloud.New(pts), nil
}

// ReadPointsFile parses the point buffer at path.
func ReadPointsFile(path string) (*cloud.Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening point buffer: %w", err)
	}
	defer f.Close()
	c, err := ReadPoints(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// parsePoint decodes one data line. Accepted layouts:
//
//	x y z
//	x y z intensity
//	x y z r g b
//	x y z intensity r g b
func parsePoint(fields []string) (cloud.Point, error) {
	if len(fields) < 3 {
		return cloud.Point{}, fmt.Errorf("expected at least 3 columns, got %d", len(fields))
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return cloud.Point{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		vals[i] = v
	}

	p := cloud.Point{Pos: v3.Vec{X: vals[0], Y: vals[1], Z: vals[2]}}
	switch len(vals) {
	case 3:
	case 4:
		p.Intensity = clampU16(vals[3])
	case 6:
		p.R, p.G, p.B = clampU8(vals[3]), clampU8(vals[4]), clampU8(vals[5])
	case 7:
		p.Intensity = clampU16(vals[3])
		p.R, p.G, p.B = clampU8(vals[4]), clampU8(vals[5]), clampU8(vals[6])
	default:
		return cloud.Point{}, fmt.Errorf("unsupported column count %d", len(vals))
	}
	return p, nil
}

func clampU16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

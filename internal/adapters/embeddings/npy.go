package embeddings

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

// Array is a decoded numeric npy array in C order.
type Array struct {
	Shape []int
	Data  []float64
}

// DecodeNPY parses an npy file (format versions 1 to 3) holding float32 or
// float64 values of either byte order.
func DecodeNPY(data []byte) (*Array, error) {
	if len(data) < 10 || !bytes.Equal(data[:6], npyMagic) {
		return nil, ErrNotNPY
	}
	major := data[6]
	var (
		headerLen int
		offset    int
	)
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		offset = 10
	case 2, 3:
		if len(data) < 12 {
			return nil, ErrNotNPY
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		offset = 12
	default:
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedNPY, major)
	}
	if offset+headerLen > len(data) {
		return nil, fmt.Errorf("%w: truncated header", ErrNotNPY)
	}

	header := string(data[offset : offset+headerLen])
	descr, err := headerString(header, "descr")
	if err != nil {
		return nil, err
	}
	fortran := strings.Contains(headerValue(header, "fortran_order"), "True")
	shape, err := headerShape(header)
	if err != nil {
		return nil, err
	}

	var (
		order binary.ByteOrder
		width int
	)
	switch descr {
	case "<f4", "|f4", "=f4":
		order, width = binary.LittleEndian, 4
	case "<f8", "|f8", "=f8":
		order, width = binary.LittleEndian, 8
	case ">f4":
		order, width = binary.BigEndian, 4
	case ">f8":
		order, width = binary.BigEndian, 8
	default:
		return nil, fmt.Errorf("%w: dtype %q", ErrUnsupportedNPY, descr)
	}

	count := 1
	nonUnit := 0
	for _, d := range shape {
		count *= d
		if d > 1 {
			nonUnit++
		}
	}
	if fortran && nonUnit > 1 {
		return nil, fmt.Errorf("%w: fortran order", ErrUnsupportedNPY)
	}

	body := data[offset+headerLen:]
	if len(body) < count*width {
		return nil, fmt.Errorf("%w: body has %d bytes, shape %v needs %d", ErrNotNPY, len(body), shape, count*width)
	}

	values := make([]float64, count)
	for i := range values {
		chunk := body[i*width : (i+1)*width]
		if width == 4 {
			values[i] = float64(math.Float32frombits(order.Uint32(chunk)))
		} else {
			values[i] = math.Float64frombits(order.Uint64(chunk))
		}
	}
	return &Array{Shape: shape, Data: values}, nil
}

// Rows squeezes unit axes and reshapes the array into rows of length dim.
// A scalar is rejected with ErrScalar, a last axis other than dim with ErrShape.
func (a *Array) Rows(dim int) ([][]float64, error) {
	var squeezed []int
	for _, d := range a.Shape {
		if d != 1 {
			squeezed = append(squeezed, d)
		}
	}
	if len(squeezed) == 0 {
		if dim != 1 || len(a.Data) != 1 {
			return nil, fmt.Errorf("%w: shape %v", ErrScalar, a.Shape)
		}
		squeezed = []int{1}
	}
	if last := squeezed[len(squeezed)-1]; last != dim {
		return nil, fmt.Errorf("%w: shape %v, expected last axis %d", ErrShape, a.Shape, dim)
	}

	rows := make([][]float64, len(a.Data)/dim)
	for i := range rows {
		rows[i] = a.Data[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return rows, nil
}

// EncodeNPY writes rows as a version 1 "<f8" npy array of shape (N, D), or
// (D,) when there is a single row and flat is set.
func EncodeNPY(rows [][]float64, flat bool) []byte {
	n := len(rows)
	dim := 0
	if n > 0 {
		dim = len(rows[0])
	}
	shape := fmt.Sprintf("(%d, %d)", n, dim)
	if flat && n == 1 {
		shape = fmt.Sprintf("(%d,)", dim)
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': %s, }", shape)
	// Header plus preamble is padded with spaces to a multiple of 64, ending in '\n'.
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	for _, row := range rows {
		for _, v := range row {
			_ = binary.Write(&buf, binary.LittleEndian, math.Float64bits(v))
		}
	}
	return buf.Bytes()
}

func headerValue(header, key string) string {
	i := strings.Index(header, "'"+key+"'")
	if i < 0 {
		return ""
	}
	rest := header[i+len(key)+2:]
	j := strings.Index(rest, ":")
	if j < 0 {
		return ""
	}
	return strings.TrimSpace(rest[j+1:])
}

func headerString(header, key string) (string, error) {
	v := headerValue(header, key)
	if len(v) < 2 || (v[0] != '\'' && v[0] != '"') {
		return "", fmt.Errorf("%w: missing %s", ErrNotNPY, key)
	}
	end := strings.IndexByte(v[1:], v[0])
	if end < 0 {
		return "", fmt.Errorf("%w: malformed %s", ErrNotNPY, key)
	}
	return v[1 : end+1], nil
}

func headerShape(header string) ([]int, error) {
	v := headerValue(header, "shape")
	if !strings.HasPrefix(v, "(") {
		return nil, fmt.Errorf("%w: missing shape", ErrNotNPY)
	}
	end := strings.IndexByte(v, ')')
	if end < 0 {
		return nil, fmt.Errorf("%w: malformed shape", ErrNotNPY)
	}
	var shape []int
	for _, part := range strings.Split(v[1:end], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: shape entry %q", ErrNotNPY, part)
		}
		shape = append(shape, d)
	}
	return shape, nil
}

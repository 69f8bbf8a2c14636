// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package numpy reads and writes tensors in NumPy's .npy and .npz file formats.
//
// Readers create new root tensors on the given gateway (nil for gateway.Default). Arrays stored in Fortran
// order are imported as-is and returned as a transposed view, without copying. Writers accept any view: the
// elements are written in row-major order.
package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/gomlx/ndarray/pkg/core/shapes"
	"github.com/gomlx/ndarray/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const magic = "\x93NUMPY"

// maxHeaderLen is the largest header accepted, the same limit NumPy uses by default.
const maxHeaderLen = 10000

// initialDataBuffer caps the memory reserved before the data is actually read: larger arrays grow the buffer as
// the bytes arrive, so a truncated file never allocates the full size it declares.
const initialDataBuffer = 64 << 20

// nativeLittleEndian is true if the platform stores numbers in little-endian order.
var nativeLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// FromNpyFile reads a .npy file and returns a new tensor.
func FromNpyFile(gw *gateway.Gateway, filePath string) (*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npy file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	return FromNpyReader(gw, file)
}

// FromNpyReader reads one array in .npy format from r and returns a new tensor.
func FromNpyReader(gw *gateway.Gateway, r io.Reader) (*tensors.Tensor, error) {
	preamble := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, errors.Wrapf(err, "failed to read .npy magic string")
	}
	if string(preamble[:len(magic)]) != magic {
		return nil, errors.Errorf("invalid .npy file format: magic string mismatch")
	}
	major, minor := preamble[len(magic)], preamble[len(magic)+1]
	var headerLen int
	switch {
	case major == 1:
		lenBytes := make([]byte, 2)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v1.0)")
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBytes))
	case major >= 2 && major <= 3:
		lenBytes := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v%d.%d)", major, minor)
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBytes))
	default:
		return nil, errors.Errorf("unsupported .npy version: %d.%d", major, minor)
	}
	if headerLen > maxHeaderLen {
		return nil, errors.Errorf("invalid .npy header length %d, the maximum is %d", headerLen, maxHeaderLen)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrapf(err, "failed to read .npy header")
	}
	header, err := parseHeader(string(headerBytes))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse .npy header")
	}

	// Fortran order is the row-major layout of the reversed dimensions.
	dims := slices.Clone(header.dimensions)
	if header.fortranOrder {
		slices.Reverse(dims)
	}
	shape := shapes.Make(header.dtype, dims...)
	numBytes := header.numBytes
	var buf bytes.Buffer
	buf.Grow(min(numBytes, initialDataBuffer))
	if _, err = io.CopyN(&buf, r, int64(numBytes)); err != nil {
		return nil, errors.Wrapf(err, "failed to read .npy data of %s (expected %d bytes)", shape, numBytes)
	}
	data := buf.Bytes()
	if header.swapBytes {
		swapBytes(data, header.dtype.Size())
	}
	tensor, err := tensors.ImportBytes(gw, data, shape)
	if err != nil {
		return nil, err
	}
	if !header.fortranOrder || shape.Rank() <= 1 {
		return tensor, nil
	}
	transposed, err := tensor.Transpose()
	if finalizeErr := tensor.Finalize(); finalizeErr != nil {
		klog.Errorf("numpy: failed to finalize imported tensor: %+v", finalizeErr)
	}
	return transposed, err
}

// npyHeader is the parsed header dictionary of a .npy array.
type npyHeader struct {
	dtype        dtypes.DType
	dimensions   []int
	fortranOrder bool
	swapBytes    bool

	// numBytes of the data that follows the header.
	numBytes int
}

var (
	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// parseHeader parses the header dictionary, e.g. "{'descr': '<f4', 'fortran_order': False, 'shape': (2, 3), }".
func parseHeader(header string) (h npyHeader, err error) {
	match := reDescr.FindStringSubmatch(header)
	if len(match) < 2 {
		return h, errors.Errorf("could not find 'descr' in header %q", header)
	}
	descr := match[1]
	h.dtype, err = npyToDType(descr)
	if err != nil {
		return h, err
	}
	if h.dtype.Size() > 1 {
		switch descr[0] {
		case '<':
			h.swapBytes = !nativeLittleEndian
		case '>':
			h.swapBytes = nativeLittleEndian
		}
	}

	match = reFortran.FindStringSubmatch(header)
	if len(match) < 2 {
		return h, errors.Errorf("could not find 'fortran_order' in header %q", header)
	}
	h.fortranOrder = match[1] == "True"

	match = reShape.FindStringSubmatch(header)
	if len(match) < 2 {
		return h, errors.Errorf("could not find 'shape' in header %q", header)
	}
	h.dimensions = []int{}
	for part := range strings.SplitSeq(match[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			// Trailing comma, as in (10,).
			continue
		}
		dim, parseErr := strconv.Atoi(part)
		if parseErr != nil {
			return h, errors.Wrapf(parseErr, "invalid dimension %q in header", part)
		}
		h.dimensions = append(h.dimensions, dim)
	}
	if err = shapes.CheckDimensions("numpy", h.dimensions...); err != nil {
		return h, err
	}
	h.numBytes, err = dataSize(h.dtype, h.dimensions)
	return h, err
}

// dataSize returns the number of bytes of an array with the given dtype and dimensions, or a ShapeError if it
// doesn't fit in an int.
func dataSize(dtype dtypes.DType, dimensions []int) (int, error) {
	numBytes := dtype.Size()
	for _, dim := range dimensions {
		if dim == 0 {
			return 0, nil
		}
		if numBytes > math.MaxInt/dim {
			return 0, errs.NewShapeError("numpy", "array of dtype %s and dimensions %v is too large", dtype, dimensions)
		}
		numBytes *= dim
	}
	return numBytes, nil
}

// swapBytes reverses the bytes of each element of elementSize bytes.
func swapBytes(data []byte, elementSize int) {
	for start := 0; start+elementSize <= len(data); start += elementSize {
		slices.Reverse(data[start : start+elementSize])
	}
}

// npyCodes maps the NumPy type codes (without the byte order) to dtypes.
var npyCodes = map[string]dtypes.DType{
	"b1": dtypes.Bool, "?": dtypes.Bool,
	"i1": dtypes.Int8, "i2": dtypes.Int16, "i4": dtypes.Int32, "i8": dtypes.Int64,
	"u1": dtypes.Uint8, "u2": dtypes.Uint16, "u4": dtypes.Uint32, "u8": dtypes.Uint64,
	"f2": dtypes.Float16, "f4": dtypes.Float32, "f8": dtypes.Float64,
}

// npyToDType converts a NumPy dtype string (e.g. "<f4") to a dtypes.DType.
func npyToDType(descr string) (dtypes.DType, error) {
	code := strings.TrimLeft(descr, "<>=|")
	if dtype, found := npyCodes[code]; found {
		return dtype, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported NumPy dtype %q", descr)
}

// dtypeToNpy converts a dtype to a NumPy dtype string, in the native byte order.
func dtypeToNpy(dtype dtypes.DType) (string, error) {
	for code, candidate := range npyCodes {
		if candidate != dtype || code == "?" {
			continue
		}
		switch {
		case dtype.Size() == 1:
			return "|" + code, nil
		case nativeLittleEndian:
			return "<" + code, nil
		default:
			return ">" + code, nil
		}
	}
	return "", errors.Errorf("dtype %s has no .npy equivalent", dtype)
}

// ToNpyWriter writes the tensor to w in .npy format (version 1.0). Views of any layout are accepted.
func ToNpyWriter(tensor *tensors.Tensor, w io.Writer) error {
	if err := tensor.CheckValid(); err != nil {
		return err
	}
	shape := tensor.Shape()
	descr, err := dtypeToNpy(shape.DType)
	if err != nil {
		return err
	}
	var shapeTuple string
	switch shape.Rank() {
	case 0:
		shapeTuple = "()"
	case 1:
		shapeTuple = fmt.Sprintf("(%d,)", shape.Dimensions[0])
	default:
		parts := make([]string, shape.Rank())
		for ii, dim := range shape.Dimensions {
			parts[ii] = strconv.Itoa(dim)
		}
		shapeTuple = "(" + strings.Join(parts, ", ") + ")"
	}
	data, err := tensor.Bytes()
	if err != nil {
		return err
	}

	// The preamble (magic, version and header length) plus header must be a multiple of 64 bytes, and the header
	// ends with a newline.
	var header bytes.Buffer
	_, _ = fmt.Fprintf(&header, "{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple)
	preambleLen := len(magic) + 2 + 2
	for (preambleLen+header.Len()+1)%64 != 0 {
		header.WriteByte(' ')
	}
	header.WriteByte('\n')
	if header.Len() > 0xFFFF {
		return errors.Errorf("header of %s too long for .npy v1.0", shape)
	}

	var preamble bytes.Buffer
	preamble.WriteString(magic)
	preamble.Write([]byte{1, 0})
	_ = binary.Write(&preamble, binary.LittleEndian, uint16(header.Len()))
	for _, part := range [][]byte{preamble.Bytes(), header.Bytes(), data} {
		if _, err = w.Write(part); err != nil {
			return errors.Wrapf(err, "failed to write .npy contents of %s", shape)
		}
	}
	return nil
}

// ToNpyFile writes the tensor to a .npy file.
func ToNpyFile(tensor *tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npy file %q", filePath)
	}
	if err = ToNpyWriter(tensor, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "failed to close .npy file %q", filePath)
}

// FromNpzFile reads a .npz file and returns its arrays by name.
func FromNpzFile(gw *gateway.Gateway, filePath string) (map[string]*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npz file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat .npz file %q", filePath)
	}
	return FromNpzReader(gw, file, info.Size())
}

// FromNpzReader reads a .npz archive (a zip file of .npy arrays) and returns its arrays by name, the file names
// without the ".npy" extension. Other files in the archive are ignored.
//
// On error, the tensors already read are finalized.
func FromNpzReader(gw *gateway.Gateway, r io.ReaderAt, size int64) (map[string]*tensors.Tensor, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read .npz archive")
	}
	results := make(map[string]*tensors.Tensor)
	for _, f := range zipReader.File {
		tensor, err := readNpzEntry(gw, f)
		if err != nil {
			for _, loaded := range results {
				if finalizeErr := loaded.Finalize(); finalizeErr != nil {
					klog.Errorf("numpy: failed to finalize tensor while handling error: %+v", finalizeErr)
				}
			}
			return nil, err
		}
		if tensor != nil {
			results[strings.TrimSuffix(f.Name, ".npy")] = tensor
		}
	}
	return results, nil
}

// readNpzEntry reads one file of a .npz archive. It returns nil if the file is not a .npy array.
func readNpzEntry(gw *gateway.Gateway, f *zip.File) (*tensors.Tensor, error) {
	cleanPath := path.Clean(f.Name)
	if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
		return nil, errors.Errorf("invalid path in .npz archive: %q (normalized to %q)", f.Name, cleanPath)
	}
	if !strings.HasSuffix(f.Name, ".npy") {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q in .npz archive", f.Name)
	}
	defer func() { _ = rc.Close() }()
	tensor, err := FromNpyReader(gw, rc)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read array %q from .npz archive", f.Name)
	}
	return tensor, nil
}

// ToNpzWriter writes the tensors to w as a .npz archive, in the order of their names.
func ToNpzWriter(tensorsMap map[string]*tensors.Tensor, w io.Writer) error {
	zipWriter := zip.NewWriter(w)
	for _, name := range slices.Sorted(maps.Keys(tensorsMap)) {
		npyName := name + ".npy"
		fileWriter, err := zipWriter.Create(npyName)
		if err != nil {
			return errors.Wrapf(err, "failed to create %q in .npz archive", npyName)
		}
		if err = ToNpyWriter(tensorsMap[name], fileWriter); err != nil {
			return errors.WithMessagef(err, "failed to write array %q to .npz archive", name)
		}
	}
	return errors.Wrap(zipWriter.Close(), "failed to close .npz archive")
}

// ToNpzFile writes the tensors to a .npz file.
func ToNpzFile(tensorsMap map[string]*tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npz file %q", filePath)
	}
	if err = ToNpzWriter(tensorsMap, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "failed to close .npz file %q", filePath)
}

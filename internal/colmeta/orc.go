// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package colmeta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cardinalhq/filestat/internal/cloudstorage"
	"github.com/cardinalhq/filestat/internal/locator"
)

const (
	orcMagic = "ORC"
	// orcDefaultBlockSize is the compression block size writers use when
	// the postscript omits it.
	orcDefaultBlockSize = 256 << 10
	// maxORCFooterLength bounds allocations driven by a corrupt postscript.
	maxORCFooterLength = 64 << 20
)

// Compression kinds stored in the ORC postscript.
const (
	orcCompressionNone   = 0
	orcCompressionZlib   = 1
	orcCompressionSnappy = 2
	orcCompressionLZO    = 3
	orcCompressionLZ4    = 4
	orcCompressionZstd   = 5
)

// Type kinds stored in the ORC footer.
const (
	orcKindList    = 10
	orcKindMap     = 11
	orcKindStruct  = 12
	orcKindUnion   = 13
	orcKindDecimal = 14
	orcKindVarchar = 16
	orcKindChar    = 17
)

var orcKindNames = map[uint64]string{
	0:  "boolean",
	1:  "tinyint",
	2:  "smallint",
	3:  "int",
	4:  "bigint",
	5:  "float",
	6:  "double",
	7:  "string",
	8:  "binary",
	9:  "timestamp",
	15: "date",
	18: "timestamp with local time zone",
}

var orcWriterNames = map[uint64]string{
	0: "ORC Java",
	1: "ORC C++",
	2: "Presto",
	3: "Go",
	4: "Trino",
	5: "cuDF",
}

var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil)
})

// ORCReader decodes ORC file tails. It reads the postscript and the file
// footer; stripe data and the stripe statistics section are never fetched.
type ORCReader struct {
	fs cloudstorage.Filesystem
}

var _ Reader = (*ORCReader)(nil)

func NewORCReader(fs cloudstorage.Filesystem) *ORCReader {
	return &ORCReader{fs: fs}
}

func (r *ORCReader) Open(ctx context.Context, loc locator.Locator) (Handle, error) {
	return openFooter(ctx, r.fs, loc, decodeORC)
}

type orcPostScript struct {
	footerLength uint64
	compression  uint64
	blockSize    uint64
	magic        string
}

type orcType struct {
	kind       uint64
	subtypes   []uint32
	fieldNames []string
	maxLength  uint64
	precision  uint64
	scale      uint64
}

func decodeORC(obj cloudstorage.Object) (*Footer, error) {
	size := obj.Size()
	if size < int64(len(orcMagic))+2 {
		return nil, fmt.Errorf("file too small for ORC: %d bytes", size)
	}

	last, err := readAt(obj, size-1, 1)
	if err != nil {
		return nil, err
	}
	psLen := int64(last[0])
	if psLen == 0 || psLen+1+int64(len(orcMagic)) > size {
		return nil, fmt.Errorf("invalid ORC postscript length %d", psLen)
	}
	psBytes, err := readAt(obj, size-1-psLen, psLen)
	if err != nil {
		return nil, err
	}
	ps, err := parseORCPostScript(psBytes)
	if err != nil {
		return nil, fmt.Errorf("decoding ORC postscript: %w", err)
	}
	if ps.magic != orcMagic {
		return nil, errors.New("ORC magic missing from postscript")
	}
	if ps.footerLength == 0 || ps.footerLength > maxORCFooterLength ||
		int64(ps.footerLength)+psLen+1+int64(len(orcMagic)) > size {
		return nil, fmt.Errorf("invalid ORC footer length %d", ps.footerLength)
	}

	footerLen := int64(ps.footerLength)
	raw, err := readAt(obj, size-1-psLen-footerLen, footerLen)
	if err != nil {
		return nil, err
	}
	data, err := orcDecompress(ps.compression, ps.blockSize, raw)
	if err != nil {
		return nil, fmt.Errorf("decompressing ORC footer: %w", err)
	}
	footer, err := parseORCFooter(data)
	if err != nil {
		return nil, fmt.Errorf("decoding ORC footer: %w", err)
	}
	return footer, nil
}

func parseORCPostScript(b []byte) (orcPostScript, error) {
	var ps orcPostScript
	err := walkMessage(b, func(f wireField) error {
		switch f.num {
		case 1:
			ps.footerLength = f.varint
		case 2:
			ps.compression = f.varint
		case 3:
			ps.blockSize = f.varint
		case 8000:
			ps.magic = string(f.bytes)
		}
		return nil
	})
	return ps, err
}

func parseORCFooter(b []byte) (*Footer, error) {
	var (
		f        = &Footer{}
		types    []orcType
		stats    []ColumnStats
		writer   uint64
		software string
		hasID    bool
	)
	err := walkMessage(b, func(fld wireField) error {
		switch fld.num {
		case 2:
			f.ContentLength = fld.varint
		case 3:
			s, err := parseORCStripe(fld.bytes)
			if err != nil {
				return fmt.Errorf("stripe %d: %w", len(f.Stripes), err)
			}
			f.Stripes = append(f.Stripes, s)
		case 4:
			t, err := parseORCType(fld.bytes)
			if err != nil {
				return fmt.Errorf("type %d: %w", len(types), err)
			}
			types = append(types, t)
		case 6:
			f.NumRows = int64(fld.varint)
		case 7:
			c, err := parseORCColumnStats(fld.bytes)
			if err != nil {
				return fmt.Errorf("statistics %d: %w", len(stats), err)
			}
			stats = append(stats, c)
		case 9:
			writer, hasID = fld.varint, true
		case 12:
			software = string(fld.bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := orcColumnNames(types)
	for i := range stats {
		if i < len(names) && names[i] != "" {
			stats[i].Path = names[i]
		} else {
			stats[i].Path = "_col" + strconv.Itoa(i)
		}
	}
	// Column 0 is the root struct; its value count is the row count.
	if len(stats) > 1 {
		f.FileColumns = stats[1:]
	}
	if len(types) > 0 {
		f.Schema = orcTypeString(types, 0)
	}
	switch {
	case software != "":
		f.CreatedBy = software
	case hasID:
		if name, ok := orcWriterNames[writer]; ok {
			f.CreatedBy = name
		} else {
			f.CreatedBy = "writer " + strconv.FormatUint(writer, 10)
		}
	}
	return f, nil
}

func parseORCStripe(b []byte) (Stripe, error) {
	var s Stripe
	var index, data, stripeFooter uint64
	err := walkMessage(b, func(f wireField) error {
		switch f.num {
		case 2:
			index = f.varint
		case 3:
			data = f.varint
		case 4:
			stripeFooter = f.varint
		case 5:
			s.Rows = int64(f.varint)
		}
		return nil
	})
	s.ByteSize = index + data + stripeFooter
	return s, err
}

func parseORCType(b []byte) (orcType, error) {
	var t orcType
	err := walkMessage(b, func(f wireField) error {
		switch f.num {
		case 1:
			t.kind = f.varint
		case 2:
			if f.typ == protowire.VarintType {
				t.subtypes = append(t.subtypes, uint32(f.varint))
				return nil
			}
			packed := f.bytes
			for len(packed) > 0 {
				v, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return protowire.ParseError(n)
				}
				t.subtypes = append(t.subtypes, uint32(v))
				packed = packed[n:]
			}
		case 3:
			t.fieldNames = append(t.fieldNames, string(f.bytes))
		case 4:
			t.maxLength = f.varint
		case 5:
			t.precision = f.varint
		case 6:
			t.scale = f.varint
		}
		return nil
	})
	return t, err
}

func parseORCColumnStats(b []byte) (ColumnStats, error) {
	var c ColumnStats
	err := walkMessage(b, func(f wireField) error {
		switch f.num {
		case 1:
			c.NumValues = f.varint
		case 11:
			c.BytesOnDisk = f.varint
		}
		return nil
	})
	return c, err
}

// orcColumnNames returns a dotted path per type id. ORC lists types in
// pre-order, so every parent precedes its children.
func orcColumnNames(types []orcType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		for j, sub := range t.subtypes {
			child := int(sub)
			if child <= i || child >= len(types) {
				continue
			}
			var name string
			switch {
			case t.kind == orcKindStruct && j < len(t.fieldNames):
				name = t.fieldNames[j]
			case t.kind == orcKindList:
				name = "_elem"
			case t.kind == orcKindMap && j == 0:
				name = "_key"
			case t.kind == orcKindMap:
				name = "_value"
			default:
				name = "_" + strconv.Itoa(j)
			}
			if names[i] != "" {
				name = names[i] + "." + name
			}
			names[child] = name
		}
	}
	return names
}

// orcTypeString renders the type tree rooted at i in Hive notation, such as
// struct<id:bigint,name:string>.
func orcTypeString(types []orcType, i int) string {
	t := types[i]
	child := func(j int) string {
		if j >= len(t.subtypes) {
			return "?"
		}
		c := int(t.subtypes[j])
		if c <= i || c >= len(types) {
			return "?"
		}
		return orcTypeString(types, c)
	}

	switch t.kind {
	case orcKindStruct:
		parts := make([]string, len(t.subtypes))
		for j := range t.subtypes {
			name := "_col" + strconv.Itoa(j)
			if j < len(t.fieldNames) {
				name = t.fieldNames[j]
			}
			parts[j] = name + ":" + child(j)
		}
		return "struct<" + strings.Join(parts, ",") + ">"
	case orcKindList:
		return "array<" + child(0) + ">"
	case orcKindMap:
		return "map<" + child(0) + "," + child(1) + ">"
	case orcKindUnion:
		parts := make([]string, len(t.subtypes))
		for j := range t.subtypes {
			parts[j] = child(j)
		}
		return "uniontype<" + strings.Join(parts, ",") + ">"
	case orcKindDecimal:
		return fmt.Sprintf("decimal(%d,%d)", t.precision, t.scale)
	case orcKindVarchar:
		return fmt.Sprintf("varchar(%d)", t.maxLength)
	case orcKindChar:
		return fmt.Sprintf("char(%d)", t.maxLength)
	}
	if name, ok := orcKindNames[t.kind]; ok {
		return name
	}
	return "unknown"
}

// orcDecompress undoes ORC's chunked compression. Each chunk starts with a
// 3-byte little-endian header holding length<<1 | original.
func orcDecompress(codec, blockSize uint64, b []byte) ([]byte, error) {
	if codec == orcCompressionNone {
		return b, nil
	}
	var out []byte
	for len(b) > 0 {
		if len(b) < 3 {
			return nil, errors.New("truncated chunk header")
		}
		header := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		b = b[3:]
		n := int(header >> 1)
		if n > len(b) {
			return nil, fmt.Errorf("chunk of %d bytes exceeds the remaining %d", n, len(b))
		}
		chunk := b[:n]
		b = b[n:]
		if header&1 == 1 {
			out = append(out, chunk...)
			continue
		}
		d, err := orcInflate(codec, blockSize, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
	}
	return out, nil
}

func orcInflate(codec, blockSize uint64, chunk []byte) ([]byte, error) {
	switch codec {
	case orcCompressionZlib:
		r := flate.NewReader(bytes.NewReader(chunk))
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)
	case orcCompressionSnappy:
		return snappy.Decode(nil, chunk)
	case orcCompressionLZ4:
		if blockSize == 0 {
			blockSize = orcDefaultBlockSize
		}
		if blockSize > maxORCFooterLength {
			return nil, fmt.Errorf("compression block size %d too large", blockSize)
		}
		dst := make([]byte, blockSize)
		n, err := lz4.UncompressBlock(chunk, dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	case orcCompressionZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(chunk, nil)
	case orcCompressionLZO:
		return nil, errors.New("LZO compression is not supported")
	default:
		return nil, fmt.Errorf("unknown compression kind %d", codec)
	}
}

// wireField is one decoded protobuf field. varint is set for varint fields
// and bytes for length-delimited ones.
type wireField struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// walkMessage calls fn for each top-level field of a protobuf message.
func walkMessage(b []byte, fn func(wireField) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

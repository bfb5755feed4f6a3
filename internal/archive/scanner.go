// Package archive reads zip containers as a forward-only stream of entries.
//
// The scanner follows local file headers in physical order and never seeks,
// so archives of any size can be walked from a network body or a pipe. A
// scanner is single use: rescanning needs a freshly opened reader.
package archive

import (
	"bufio"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"iter"
	"strings"
	"unicode/utf8"
)

// Zip record signatures.
const (
	sigLocalHeader     = 0x04034b50
	sigDataDescriptor  = 0x08074b50
	sigCentralHeader   = 0x02014b50
	sigEndOfCentralDir = 0x06054b50
	sigZip64End        = 0x06064b50
	sigZip64Locator    = 0x07064b50
	sigDigitalSig      = 0x05054b50

	localHeaderLen = 26 // fixed part after the signature

	flagEncrypted  = 0x1
	flagDescriptor = 0x8

	// MethodStore is the zip "stored" (uncompressed) method.
	MethodStore uint16 = 0
	// MethodDeflate is the zip "deflate" method.
	MethodDeflate uint16 = 8
)

// Entry describes one archive entry as found in its local header.
type Entry struct {
	// Name is the path of the entry within the archive.
	Name string
	// IsDir reports whether the entry is a directory marker.
	IsDir bool
	// IsHidden reports whether the last path segment starts with a dot.
	IsHidden bool
	// Method is the compression method.
	Method uint16
	// CompressedSize is the stored size, or -1 when only a data descriptor knows it.
	CompressedSize int64
	// Size is the uncompressed size, or -1 when only a data descriptor knows it.
	Size int64
	// Index is the physical position of the entry, counting skipped entries.
	Index int
}

// Skipped reports whether the entry is not a candidate for interpretation.
func (e Entry) Skipped() bool {
	return e.IsDir || e.IsHidden
}

// Scanner walks the entries of a zip stream.
type Scanner struct {
	br    *bufio.Reader
	body  *entryBody
	index int
	err   error
}

// entryBody tracks the unread data of the current entry.
type entryBody struct {
	entry      Entry
	raw        *io.LimitedReader
	inflater   io.ReadCloser
	descriptor bool
	encrypted  bool
	crc        uint32
	opened     bool
}

// NewScanner creates a scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Scanner{br: br}
}

// Next advances to the next candidate entry, skipping directories and
// hidden entries. It returns io.EOF once the entry table ends cleanly.
func (s *Scanner) Next() (Entry, error) {
	for {
		entry, err := s.NextAny()
		if err != nil {
			return Entry{}, err
		}
		if !entry.Skipped() {
			return entry, nil
		}
	}
}

// NextAny advances to the next entry of any kind, including skipped ones.
func (s *Scanner) NextAny() (Entry, error) {
	if s.err != nil {
		return Entry{}, s.err
	}
	if err := s.finishBody(); err != nil {
		s.err = err
		return Entry{}, err
	}

	entry, err := s.readHeader()
	if err != nil {
		s.err = err
		return Entry{}, err
	}
	s.index++
	return entry, nil
}

// Open returns the uncompressed data of the current entry. The reader is
// only valid until the next call to Next or NextAny.
func (s *Scanner) Open() (io.Reader, error) {
	if s.body == nil {
		return nil, errors.New("archive: no current entry")
	}
	b := s.body
	if b.opened {
		return nil, errors.New("archive: entry already opened")
	}
	b.opened = true

	if b.entry.IsDir {
		return strings.NewReader(""), nil
	}
	if b.encrypted {
		return nil, newError(ErrorUnsupported, b.entry.Index, b.entry.Name, "encrypted entries cannot be read", nil)
	}

	var r io.Reader
	switch {
	case b.descriptor:
		r = b.inflater
	case b.entry.Method == MethodStore:
		r = b.raw
	case b.entry.Method == MethodDeflate:
		b.inflater = flate.NewReader(b.raw)
		r = b.inflater
	default:
		return nil, newError(ErrorUnsupported, b.entry.Index, b.entry.Name, "unsupported compression method", nil)
	}

	if b.descriptor {
		// CRC is only known once the descriptor has been read.
		return &truncationReader{r: r, entry: b.entry}, nil
	}
	return &checksumReader{
		r:     &truncationReader{r: r, entry: b.entry},
		hash:  crc32.NewIEEE(),
		want:  b.crc,
		entry: b.entry,
	}, nil
}

// Scan iterates over candidate entries of r. Iteration stops after the
// first error, which is yielded with a zero Entry.
func Scan(r io.Reader) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		s := NewScanner(r)
		for {
			entry, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// Find scans r for the first entry called name and returns a reader over its
// uncompressed data. The reader stays valid until r is closed.
func Find(r io.Reader, name string) (io.Reader, Entry, error) {
	return find(r, name, func(e Entry) bool { return e.Name == name })
}

// FindIndex is Find for the entry at physical position index. Archives may
// hold several entries with the same name; the index tells them apart.
func FindIndex(r io.Reader, index int) (io.Reader, Entry, error) {
	return find(r, fmt.Sprintf("#%d", index), func(e Entry) bool { return e.Index == index })
}

func find(r io.Reader, label string, match func(Entry) bool) (io.Reader, Entry, error) {
	s := NewScanner(r)
	for {
		entry, err := s.NextAny()
		if errors.Is(err, io.EOF) {
			return nil, Entry{}, newError(ErrorEntryNotFound, -1, label, "entry not found", nil)
		}
		if err != nil {
			return nil, Entry{}, err
		}
		if match(entry) && !entry.IsDir {
			data, err := s.Open()
			if err != nil {
				return nil, Entry{}, err
			}
			return data, entry, nil
		}
	}
}

func (s *Scanner) readHeader() (Entry, error) {
	var sigBuf [4]byte
	n, err := io.ReadFull(s.br, sigBuf[:])
	if err != nil {
		if s.index == 0 && (n == 0 || errors.Is(err, io.ErrUnexpectedEOF)) {
			return Entry{}, newError(ErrorNotArchive, -1, "", "stream is empty or too short to be an archive", nil)
		}
		return Entry{}, newError(ErrorTruncated, s.index, "", "archive ends without a central directory", err)
	}

	switch sig := binary.LittleEndian.Uint32(sigBuf[:]); sig {
	case sigLocalHeader:
	case sigCentralHeader, sigEndOfCentralDir, sigZip64End, sigZip64Locator, sigDigitalSig:
		return Entry{}, io.EOF
	default:
		if s.index == 0 {
			return Entry{}, newError(ErrorNotArchive, -1, "", "missing zip signature", nil)
		}
		return Entry{}, newError(ErrorCorrupt, s.index, "", "unexpected record signature", nil)
	}

	var hdr [localHeaderLen]byte
	if _, err := io.ReadFull(s.br, hdr[:]); err != nil {
		return Entry{}, newError(ErrorTruncated, s.index, "", "local header is truncated", err)
	}
	flags := binary.LittleEndian.Uint16(hdr[2:4])
	method := binary.LittleEndian.Uint16(hdr[4:6])
	crc := binary.LittleEndian.Uint32(hdr[10:14])
	csize := int64(binary.LittleEndian.Uint32(hdr[14:18]))
	usize := int64(binary.LittleEndian.Uint32(hdr[18:22]))
	nameLen := int(binary.LittleEndian.Uint16(hdr[22:24]))
	extraLen := int64(binary.LittleEndian.Uint16(hdr[24:26]))

	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(s.br, nameBuf); err != nil {
		return Entry{}, newError(ErrorTruncated, s.index, "", "entry name is truncated", err)
	}
	if !utf8.Valid(nameBuf) || nameLen == 0 {
		return Entry{}, newError(ErrorCorruptName, s.index, "", "entry name cannot be decoded", nil)
	}
	name := string(nameBuf)

	if _, err := io.CopyN(io.Discard, s.br, extraLen); err != nil {
		return Entry{}, newError(ErrorTruncated, s.index, name, "extra field is truncated", err)
	}

	entry := Entry{
		Name:           name,
		IsDir:          strings.HasSuffix(name, "/"),
		IsHidden:       isHidden(name),
		Method:         method,
		CompressedSize: csize,
		Size:           usize,
		Index:          s.index,
	}

	body := &entryBody{entry: entry, crc: crc, encrypted: flags&flagEncrypted != 0}
	if flags&flagDescriptor != 0 {
		if method != MethodDeflate || flags&flagEncrypted != 0 {
			return Entry{}, newError(ErrorUnsupported, s.index, name, "only deflated entries may use a data descriptor", nil)
		}
		body.descriptor = true
		body.entry.CompressedSize = -1
		body.entry.Size = -1
		body.inflater = flate.NewReader(s.br)
		entry = body.entry
	} else {
		body.raw = &io.LimitedReader{R: s.br, N: csize}
	}
	s.body = body
	return entry, nil
}

// finishBody consumes whatever remains of the current entry so the stream
// is positioned at the next record.
func (s *Scanner) finishBody() error {
	b := s.body
	if b == nil {
		return nil
	}
	s.body = nil

	if !b.descriptor {
		if b.inflater != nil {
			b.inflater.Close()
		}
		if _, err := io.Copy(io.Discard, b.raw); err != nil {
			return newError(ErrorTruncated, b.entry.Index, b.entry.Name, "entry data is truncated", err)
		}
		if b.raw.N > 0 {
			return newError(ErrorTruncated, b.entry.Index, b.entry.Name, "entry data is truncated", io.ErrUnexpectedEOF)
		}
		return nil
	}

	if _, err := io.Copy(io.Discard, b.inflater); err != nil {
		return newError(ErrorCorrupt, b.entry.Index, b.entry.Name, "deflate stream is damaged", err)
	}
	b.inflater.Close()
	return s.readDescriptor(b.entry)
}

func (s *Scanner) readDescriptor(entry Entry) error {
	var buf [12]byte
	if _, err := io.ReadFull(s.br, buf[:4]); err != nil {
		return newError(ErrorTruncated, entry.Index, entry.Name, "data descriptor is truncated", err)
	}
	rest := buf[4:12]
	if binary.LittleEndian.Uint32(buf[:4]) == sigDataDescriptor {
		rest = buf[:12]
	}
	if _, err := io.ReadFull(s.br, rest); err != nil {
		return newError(ErrorTruncated, entry.Index, entry.Name, "data descriptor is truncated", err)
	}
	return nil
}

func isHidden(name string) bool {
	trimmed := strings.TrimSuffix(name, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.HasPrefix(trimmed, ".")
}

// truncationReader reports a premature end of entry data as an archive error.
type truncationReader struct {
	r     io.Reader
	entry Entry
}

func (t *truncationReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, newError(ErrorTruncated, t.entry.Index, t.entry.Name, "entry data cannot be read", err)
	}
	return n, err
}

type checksumReader struct {
	r     io.Reader
	hash  hash.Hash32
	want  uint32
	entry Entry
}

func (c *checksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.hash.Write(p[:n])
	if errors.Is(err, io.EOF) && c.hash.Sum32() != c.want {
		return n, newError(ErrorChecksum, c.entry.Index, c.entry.Name, "checksum mismatch", nil)
	}
	return n, err
}

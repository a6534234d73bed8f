package message

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
)

var gzipMagic = []byte{0x1f, 0x8b}

type F struct {
	c  io.Closer
	gf *gzip.Reader
	bf *bufio.Reader
}

func (f *F) Read(p []byte) (int, error) {
	if f.gf != nil {
		return f.gf.Read(p)
	}
	return f.bf.Read(p)
}

func (f *F) Close() error {
	// Close the gzip first.
	if f.gf != nil {
		f.gf.Close()
	}
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

// NewGZReader wraps r, decompressing it when it starts with the gzip magic.
// Closing the result closes r if it is an io.Closer.
func NewGZReader(r io.Reader) (io.ReadCloser, error) {
	f := &F{bf: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		f.c = c
	}
	magic, err := f.bf.Peek(len(gzipMagic))
	if err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gf, err := gzip.NewReader(f.bf)
		if err != nil {
			return nil, err
		}
		f.gf = gf
	}
	return f, nil
}

// OpenGZ opens path for reading, transparently decompressing gzip content.
func OpenGZ(path string) (io.ReadCloser, error) {
	fi, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := NewGZReader(fi)
	if err != nil {
		fi.Close()
		return nil, err
	}
	return f, nil
}

// ReadCastFile parses a cast from disk, gzip compressed or not.
func ReadCastFile(path string) (*Cast, error) {
	f, err := OpenGZ(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCast(f)
}

package csvin

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type dataType byte

const (
	dataTypePlain dataType = iota
	dataTypeGzip
	dataTypeZip
	dataTypeXZ
	dataTypeBZip2
)

var byteCodeSigs = map[dataType][]byte{
	dataTypeGzip:  {0x1f, 0x8b, 0x08},
	dataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	dataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	dataTypeBZip2: {0x42, 0x5a, 0x68},
}

// detectDataType matches the leading bytes of a stream against known
// compression signatures.
func detectDataType(head []byte) dataType {
Outer:
	for dt, sig := range byteCodeSigs {
		if len(head) < len(sig) {
			continue
		}
		for i := range sig {
			if head[i] != sig[i] {
				continue Outer
			}
		}
		// "BZh" is followed by the block size digit.
		if dt == dataTypeBZip2 && (len(head) < 4 || head[3] < '1' || head[3] > '9') {
			continue
		}
		return dt
	}
	return dataTypePlain
}

// maybeDecompress wraps r in a decompressor if it starts with a known
// compression signature. Zip archives yield their first file.
func maybeDecompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch detectDataType(head) {
	case dataTypeGzip:
		return gzip.NewReader(br)
	case dataTypeZip:
		zr := zipstream.NewReader(br)
		if _, err := zr.Next(); err != nil {
			return nil, fmt.Errorf("read zip entry: %w", err)
		}
		return zr, nil
	case dataTypeBZip2:
		return bzip2.NewReader(br), nil
	case dataTypeXZ:
		return xz.NewReader(br, 0)
	}
	return br, nil
}

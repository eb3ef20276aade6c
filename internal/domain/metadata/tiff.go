package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	maxDirectories = 32
	ifdEntrySize   = 12
)

var (
	errNoExifBlock = errors.New("no exif block")
	exifHeader     = []byte("Exif\x00\x00")
)

// tiffTypeSize maps TIFF field types to their element size in bytes.
var tiffTypeSize = map[uint16]uint64{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1,
	7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

// subDirectoryTags point at nested directories the exif decoder follows.
var subDirectoryTags = map[uint16]bool{
	0x8769: true, // exif
	0x8825: true, // gps
	0xA005: true, // interoperability
}

func isTIFF(b []byte) bool {
	return len(b) >= 8 && (bytes.HasPrefix(b, []byte("II*\x00")) || bytes.HasPrefix(b, []byte("MM\x00*")))
}

// exifBlock returns the TIFF structure of a raw TIFF or of the first exif
// APP1 segment of a JPEG.
func exifBlock(data []byte) ([]byte, error) {
	if isTIFF(data) {
		return data, nil
	}
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNoExifBlock
	}
	for i := 2; i+4 <= len(data); {
		if data[i] != 0xFF {
			return nil, errNoExifBlock
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			i++
			continue
		case marker == 0x01, marker >= 0xD0 && marker <= 0xD8:
			i += 2
			continue
		case marker == 0xD9, marker == 0xDA:
			return nil, errNoExifBlock
		}
		n := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if n < 2 || i+2+n > len(data) {
			return nil, errNoExifBlock
		}
		seg := data[i+4 : i+2+n]
		if marker == 0xE1 && bytes.HasPrefix(seg, exifHeader) && isTIFF(seg[len(exifHeader):]) {
			return seg[len(exifHeader):], nil
		}
		i += 2 + n
	}
	return nil, errNoExifBlock
}

// checkDirectories walks every directory the exif decoder would read and
// rejects any entry whose declared value does not fit inside the block.
func checkDirectories(b []byte) error {
	var order binary.ByteOrder = binary.LittleEndian
	if b[0] == 'M' {
		order = binary.BigEndian
	}
	size := uint64(len(b))
	pending := []uint64{uint64(order.Uint32(b[4:8]))}
	seen := make(map[uint64]bool)

	for len(pending) > 0 {
		off := pending[0]
		pending = pending[1:]
		if off == 0 {
			continue
		}
		if seen[off] || len(seen) >= maxDirectories {
			return ErrMalformedExif
		}
		seen[off] = true
		if off+2 > size {
			return ErrMalformedExif
		}
		end := off + 2 + uint64(order.Uint16(b[off:]))*ifdEntrySize
		if end+4 > size {
			return ErrMalformedExif
		}
		for e := off + 2; e < end; e += ifdEntrySize {
			tag := order.Uint16(b[e:])
			elem, ok := tiffTypeSize[order.Uint16(b[e+2:])]
			if !ok {
				return ErrMalformedExif
			}
			length := uint64(order.Uint32(b[e+4:])) * elem
			value := uint64(order.Uint32(b[e+8:]))
			if length > size || (length > 4 && value+length > size) {
				return ErrMalformedExif
			}
			if subDirectoryTags[tag] {
				pending = append(pending, value)
			}
		}
		pending = append(pending, uint64(order.Uint32(b[end:])))
	}
	return nil
}

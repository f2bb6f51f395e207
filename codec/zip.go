// Package codec demonstrates the Codec contract: a consumer that opens a
// RangeStream, adds end-relative intervals to walk a container's trailing
// structures, and reads from the resulting active range — all without
// ever downloading the payload bytes those structures describe.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	rangestream "github.com/go-range/rangestream"
)

// eocdSignature is the 4-byte little-endian signature of a ZIP end-of-
// central-directory record.
const eocdSignature = 0x06054b50

// eocdFixedLen is the length of the EOCD record excluding its
// variable-length trailing comment.
const eocdFixedLen = 22

// maxCommentLen bounds how far back a ZIP comment can push the EOCD
// record; a comment field is at most 65535 bytes.
const maxCommentLen = 65535

// EOCD is a parsed ZIP end-of-central-directory record.
type EOCD struct {
	DiskNumber        uint16
	CDDiskNumber      uint16
	DiskEntries       uint16
	TotalEntries      uint16
	CDSize            uint32
	CDOffset          uint32
	CommentLen        uint16
}

// ReadEOCD locates and parses a ZIP end-of-central-directory record by
// walking backward from the tail of the resource, the way a local ZIP
// reader would seek to the end of an os.File. It issues end-relative Add
// calls of growing size until the signature is found or maxCommentLen is
// exhausted, so that a comment-free ZIP costs exactly one small Range
// fetch. Each widening only asks the stream for the newly-needed prefix
// in front of the bytes already read on a prior iteration — those bytes
// are kept around locally and prepended, rather than re-requested — so a
// ZIP with a long comment costs one Range fetch per doubling, not one
// fetch of the whole (re-doubled) window every time.
func ReadEOCD(stream *rangestream.RangeStream) (EOCD, error) {
	total, err := stream.TotalBytes()
	if err != nil {
		return EOCD{}, err
	}

	limit := int64(eocdFixedLen + maxCommentLen)
	if total < limit {
		limit = total
	}

	var buf []byte
	prevWindow := int64(0)
	for window := int64(eocdFixedLen); prevWindow < limit; window *= 2 {
		if window > limit {
			window = limit
		}
		var stop *int64
		if prevWindow > 0 {
			v := -prevWindow
			stop = &v
		}
		if err := stream.AddRange(-window, stop); err != nil {
			return EOCD{}, err
		}

		prefix, err := readAll(stream, window-prevWindow)
		if err != nil {
			return EOCD{}, err
		}
		buf = append(prefix, buf...)

		if idx := lastIndexSignature(buf); idx >= 0 {
			return parseEOCD(buf[idx:])
		}

		if window == limit {
			break
		}
		prevWindow = window
	}
	return EOCD{}, fmt.Errorf("codec: end-of-central-directory record not found within last %d bytes", maxCommentLen+eocdFixedLen)
}

func readAll(stream *rangestream.RangeStream, want int64) ([]byte, error) {
	out := make([]byte, 0, want)
	for int64(len(out)) < want {
		chunk, err := stream.Read(int(want) - len(out))
		out = append(out, chunk...)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
	}
	return out, nil
}

func lastIndexSignature(buf []byte) int {
	for i := len(buf) - eocdFixedLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) == eocdSignature {
			return i
		}
	}
	return -1
}

func parseEOCD(buf []byte) (EOCD, error) {
	if len(buf) < eocdFixedLen {
		return EOCD{}, fmt.Errorf("codec: truncated end-of-central-directory record (%d bytes)", len(buf))
	}
	return EOCD{
		DiskNumber:   binary.LittleEndian.Uint16(buf[4:6]),
		CDDiskNumber: binary.LittleEndian.Uint16(buf[6:8]),
		DiskEntries:  binary.LittleEndian.Uint16(buf[8:10]),
		TotalEntries: binary.LittleEndian.Uint16(buf[10:12]),
		CDSize:       binary.LittleEndian.Uint32(buf[12:16]),
		CDOffset:     binary.LittleEndian.Uint32(buf[16:20]),
		CommentLen:   binary.LittleEndian.Uint16(buf[20:22]),
	}, nil
}

// ReadCentralDirectory adds and reads the central directory described by
// eocd, returning its raw bytes for the caller to parse into individual
// file headers. It demonstrates a second Codec collaborator call using
// the same stream, now with an absolute rather than end-relative interval.
func ReadCentralDirectory(stream *rangestream.RangeStream, eocd EOCD) ([]byte, error) {
	start := int64(eocd.CDOffset)
	stop := start + int64(eocd.CDSize)
	if err := stream.Add(rangestream.Interval{Start: start, Stop: stop}); err != nil {
		return nil, err
	}
	return readAll(stream, int64(eocd.CDSize))
}

// Package banner generates the filler lines a tarpit trickles to its
// clients. Lines resemble pre-handshake server chatter but are guaranteed
// to never form a valid SSH identification string, so a patient client
// waits forever for a handshake that cannot begin.
package banner

import (
	"bytes"
	"math/rand/v2"
)

const (
	// MinLength is the shortest line the generator emits: one filler byte
	// plus the CRLF terminator.
	MinLength = 3

	// MaxLength is the hard ceiling for a single line, terminator
	// included. RFC 4253 caps an identification string at 255 bytes.
	MaxLength = 255
)

// idPrefix opens a real SSH identification string. Generated lines must
// never start with it.
var idPrefix = []byte("SSH-")

// randIntN is the random source; overrideable for tests.
var randIntN = rand.IntN

// Line returns a freshly allocated banner line. Total length, CRLF
// included, is drawn uniformly from [MinLength, maxLen]; maxLen is
// clamped to [MinLength, MaxLength]. Filler bytes are printable ASCII,
// so the terminator is the only CR or LF in the line.
func Line(maxLen int) []byte {
	return AppendLine(nil, maxLen)
}

// AppendLine appends one banner line to dst and returns the extended
// slice, letting a caller reuse a single buffer across sends. The line
// has the same shape as Line.
func AppendLine(dst []byte, maxLen int) []byte {
	if maxLen > MaxLength {
		maxLen = MaxLength
	}
	if maxLen < MinLength {
		maxLen = MinLength
	}

	n := MinLength + randIntN(maxLen-MinLength+1)

	start := len(dst)
	for i := 0; i < n-2; i++ {
		dst = append(dst, byte(' '+randIntN(95))) // printable: 0x20..0x7e
	}
	dst = append(dst, '\r', '\n')

	// A line opening with "SSH-" could complete the remote's banner scan;
	// break the prefix before it goes out.
	if line := dst[start:]; bytes.HasPrefix(line, idPrefix) {
		line[0] = 'X'
	}
	return dst
}

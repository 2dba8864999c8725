package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job IDs are 26-character Crockford Base32 ULIDs: 48 bits of millisecond
// timestamp followed by 80 bits of randomness, so IDs sort by creation time.

var (
	idMu    sync.Mutex
	lastTS  uint64
	lastSeq uint16
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

func newJobID() string {
	idMu.Lock()
	defer idMu.Unlock()

	ts := uint64(time.Now().UnixMilli())
	if ts == lastTS {
		lastSeq++
	} else {
		lastTS = ts
		lastSeq = 0
	}

	var b [16]byte
	b[0] = byte(ts >> 40)
	b[1] = byte(ts >> 32)
	b[2] = byte(ts >> 24)
	b[3] = byte(ts >> 16)
	b[4] = byte(ts >> 8)
	b[5] = byte(ts)
	rand.Read(b[6:])
	// Sequence keeps IDs unique within the same millisecond.
	binary.BigEndian.PutUint16(b[6:8], lastSeq)

	return encodeBase32(b)
}

// encodeBase32 encodes 128 bits as 26 Crockford characters. The first
// character carries only the top 3 bits so the remaining 25 groups align
// on 5-bit boundaries.
func encodeBase32(b [16]byte) string {
	var out [26]byte
	for i := range out {
		end := 3 + 5*i
		start := end - 5
		if start < 0 {
			start = 0
		}
		v := 0
		for j := start; j < end; j++ {
			v = v<<1 | int(b[j/8]>>(7-j%8)&1)
		}
		out[i] = crockford[v]
	}
	return string(out[:])
}

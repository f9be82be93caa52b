package idcache

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	prefixIdentifier byte = 0x01
	prefixVersion    byte = 0x02

	separator byte = 0x00

	heightLen = 4
)

// markerValue is stored under identifier keys.
var markerValue = []byte{1}

// checkName checks that s can be used as identifier or path component of
// the storage key.
func checkName(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidArgument, kind)
	}
	if strings.IndexByte(s, separator) >= 0 {
		return fmt.Errorf("%w: %s contains NUL byte", ErrInvalidArgument, kind)
	}
	return nil
}

func identifierKey(id string) []byte {
	k := make([]byte, 1+len(id))
	k[0] = prefixIdentifier
	copy(k[1:], id)
	return k
}

// identifierPrefix is a seek prefix for all versions of all paths of id.
func identifierPrefix(id string) []byte {
	k := make([]byte, 0, 2+len(id))
	k = append(k, prefixVersion)
	k = append(k, id...)
	return append(k, separator)
}

// pathPrefix is a seek prefix for all versions of the path of id.
func pathPrefix(id, path string) []byte {
	k := identifierPrefix(id)
	k = append(k, path...)
	return append(k, separator)
}

func versionKey(id, path string, height uint32) []byte {
	k := pathPrefix(id, path)
	return binary.BigEndian.AppendUint32(k, height)
}

// splitVersionKey extracts path and height from the version key with
// already stripped identifier prefix.
func splitVersionKey(rest []byte) (string, uint32, bool) {
	if len(rest) < heightLen+1 || rest[len(rest)-heightLen-1] != separator {
		return "", 0, false
	}
	path := rest[:len(rest)-heightLen-1]
	return string(path), binary.BigEndian.Uint32(rest[len(rest)-heightLen:]), true
}

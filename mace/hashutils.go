package mace

import (
	"encoding/binary"
	"encoding/hex"
	"os"

	"github.com/glycerine/blake2b"
)

// Blake2bUint64 returns an 8 byte BLAKE2b hash of raw.
func Blake2bUint64(raw []byte) uint64 {
	cfg := &blake2b.Config{Size: 8}
	h, err := blake2b.New(cfg)
	panicOn(err)
	h.Write(raw)
	by := h.Sum(nil)
	return binary.LittleEndian.Uint64(by[:8])
}

// Checksum is the hex BLAKE2b-256 digest of raw, used to fingerprint
// module sources.
func Checksum(raw []byte) string {
	h, err := blake2b.New(&blake2b.Config{Size: 32})
	panicOn(err)
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

func FileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Checksum(data), nil
}

func fileExists(name string) bool {
	fi, err := os.Stat(name)
	return err == nil && !fi.IsDir()
}

func dirExists(name string) bool {
	fi, err := os.Stat(name)
	return err == nil && fi.IsDir()
}

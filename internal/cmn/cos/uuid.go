/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"
	"math/big"
	"net"
	"strconv"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// Alphabet mirrors aistore's uuidABC: shortid's default alphabet,
// reordered so that GenJobID's output sorts roughly by creation time in
// the high-order characters.
const jobIDABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var sid *shortid.Shortid

func init() {
	seed := uint64(time.Now().UnixNano())
	s, err := shortid.New(1, jobIDABC, seed)
	if err == nil {
		sid = s
	}
}

// GenJobID produces a short, UI-friendly identifier string. RenderJob
// carries no such id, and neither armbctl nor the Prometheus collector
// calls GenJobID.
func GenJobID() string {
	if sid == nil {
		return CryptoRandS(9)
	}
	id, err := sid.Generate()
	if err != nil {
		return CryptoRandS(9)
	}
	return id
}

// HashWorkerKey returns a stable map key for a worker identity, used by
// RenderJob.WorkerStatistics() so that a WorkerView replaced mid-run
// (e.g. after a reconnect) does not fragment the statistics map by
// pointer identity the way a map[*WorkerView]... would.
func HashWorkerKey(identity string) uint64 {
	return xxhash.ChecksumString64(identity)
}

// CryptoRandS returns a cryptographically random alphanumeric string of
// length n, used as a fallback identifier generator.
func CryptoRandS(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			b[i] = alphabet[0]
			continue
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b)
}

// Rand32 returns a cryptographically random 32-bit value, used for
// RenderSettings.SynchronizationID (original: random.getrandbits(32)).
func Rand32() uint32 {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// LocalIP returns the machine's outbound-interface IP address, used by
// cmd/armb-worker to print the address an operator should hand to
// `armbctl worker add` (original: src/shared/utils.py get_local_ip).
func LocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	addr := conn.LocalAddr().(*net.UDPAddr)
	return addr.IP.String(), nil
}

// FilenameForFrame zero-pads frame to the width needed to represent
// maxFrame.
func FilenameForFrame(frame, maxFrame int, ext string) string {
	width := len(strconv.Itoa(abs(maxFrame)))
	return padInt(frame, width) + ext
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func padInt(n, width int) string {
	s := strconv.Itoa(n)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for len(s) < width {
		s = "0" + s
	}
	if neg {
		s = "-" + s
	}
	return s
}

// Package wire implements the ARMB frame header.
//
// Every logical transmission is header‖command‖payload, where the header
// is the fixed 16-byte ASCII literal:
//
//	ARMB <MM> <DDDDDDDD>
//
// MM is the command length in lowercase hex (2 digits, max 0xff), DDDDDDDD
// is the payload length in lowercase hex (8 digits, max 2^32-1).
//
// Grounded on original_source/src/protocol/connection.py
// (ARMBMessageData.from_content / from_header): the header is produced
// with the literal format string "ARMB {:02x} {:08x}" there, reproduced
// here byte-for-byte with fmt.Sprintf.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package wire

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/armb-farm/armb/internal/armberr"
)

const (
	HeaderLen = 16

	// MaxCommandLen is the largest command length the 2-hex-digit MM
	// field can represent: max 0xff = 255 bytes.
	MaxCommandLen = 0xff

	// MaxPayloadLen is the largest payload length the 8-hex-digit DDDDDDDD
	// field can represent: max 2^32 - 1 bytes.
	MaxPayloadLen = 0xffffffff
)

var headerRe = regexp.MustCompile(`^ARMB ([a-f0-9]{2}) ([a-f0-9]{8})$`)

// EncodeHeader produces the 16-byte ARMB header for a message whose
// command is cmdLen bytes and whose payload is dataLen bytes.
func EncodeHeader(cmdLen, dataLen int) ([]byte, error) {
	if cmdLen < 0 || cmdLen > MaxCommandLen {
		return nil, fmt.Errorf("command length %d exceeds %d", cmdLen, MaxCommandLen)
	}
	if dataLen < 0 || uint64(dataLen) > MaxPayloadLen {
		return nil, fmt.Errorf("payload length %d exceeds %d", dataLen, MaxPayloadLen)
	}
	return []byte(fmt.Sprintf("ARMB %02x %08x", cmdLen, dataLen)), nil
}

// Encode produces exactly header‖command‖payload.
func Encode(command, payload []byte) ([]byte, error) {
	header, err := EncodeHeader(len(command), len(payload))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(header)+len(command)+len(payload))
	out = append(out, header...)
	out = append(out, command...)
	out = append(out, payload...)
	return out, nil
}

// DecodeHeader parses a 16-byte ARMB header, returning the declared
// command and payload lengths. Any header that fails the grammar is a
// fatal *armberr.FormatError on that connection.
func DecodeHeader(header []byte) (cmdLen, dataLen int, err error) {
	if len(header) != HeaderLen {
		return 0, 0, &armberr.FormatError{Header: header}
	}
	m := headerRe.FindSubmatch(header)
	if m == nil {
		return 0, 0, &armberr.FormatError{Header: header}
	}
	mm, _ := strconv.ParseInt(string(m[1]), 16, 32)
	dd, _ := strconv.ParseInt(string(m[2]), 16, 64)
	return int(mm), int(dd), nil
}

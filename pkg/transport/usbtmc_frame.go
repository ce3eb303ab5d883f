// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// USBTMC bulk message IDs (USBTMC 1.0 table 2).
const (
	usbtmcDevDepMsgOut       = 0x01
	usbtmcRequestDevDepMsgIn = 0x02
	usbtmcDevDepMsgIn        = 0x02
	usbtmcHeaderSize         = 12
	usbtmcAlignment          = 4
	usbtmcTransferSize       = 4096
	usbtmcEOM                = 0x01
)

// errStaleTag marks a bulk-in transfer answering an earlier request.
var errStaleTag = errors.New("usbtmc: bulk-in bTag does not match request")

// nextBTag returns the bTag after tag, cycling through 1..255.
func nextBTag(tag byte) byte {
	tag++
	if tag == 0 {
		tag = 1
	}
	return tag
}

func bulkHeader(msgID, tag byte, size int, attr byte) []byte {
	hdr := make([]byte, usbtmcHeaderSize)
	hdr[0] = msgID
	hdr[1] = tag
	hdr[2] = tag ^ 0xFF
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(size))
	hdr[8] = attr
	return hdr
}

// encodeBulkOut frames data as one DEV_DEP_MSG_OUT transfer with EOM set,
// padded to a 4-byte boundary.
func encodeBulkOut(tag byte, data []byte) []byte {
	msg := append(bulkHeader(usbtmcDevDepMsgOut, tag, len(data), usbtmcEOM), data...)
	if pad := len(msg) % usbtmcAlignment; pad != 0 {
		msg = append(msg, make([]byte, usbtmcAlignment-pad)...)
	}
	return msg
}

// encodeRequestIn asks the device for up to size payload bytes.
func encodeRequestIn(tag byte, size int) []byte {
	return bulkHeader(usbtmcRequestDevDepMsgIn, tag, size, 0)
}

// decodeBulkIn returns the payload of a DEV_DEP_MSG_IN transfer sent in
// answer to the request tagged tag.
func decodeBulkIn(transfer []byte, tag byte) ([]byte, error) {
	if len(transfer) < usbtmcHeaderSize || transfer[0] != usbtmcDevDepMsgIn {
		return nil, fmt.Errorf("usbtmc: malformed bulk-in header (%d bytes)", len(transfer))
	}
	if transfer[1] != tag {
		return nil, fmt.Errorf("%w: got %d, want %d", errStaleTag, transfer[1], tag)
	}
	size := int(binary.LittleEndian.Uint32(transfer[4:8]))
	size = min(size, len(transfer)-usbtmcHeaderSize)
	return transfer[usbtmcHeaderSize : usbtmcHeaderSize+size], nil
}

// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package kasa implements the client side of the TP-Link Kasa LAN protocol:
// JSON commands obfuscated with an XOR autokey stream and exchanged over UDP
// port 9999, with an optional TTL response cache in front of the wire.
//
// The cipher is obfuscation only; it carries no confidentiality guarantees.
package kasa

import (
	"encoding/binary"

	"github.com/soothill/kasa-data-logger/pkg/errors"
)

// initialKey seeds the XOR autokey stream. Fixed by the device firmware.
const initialKey byte = 0xAB

// headerLen is the size of the big-endian plaintext-length prefix used by
// the framed variant of the cipher.
const headerLen = 4

// Encrypt obfuscates plaintext with the Kasa autokey stream. Each output
// byte is the running key XOR'ed with the input byte, and becomes the key
// for the next byte, chaining every output byte to all preceding input.
func Encrypt(plaintext []byte) []byte {
	key := initialKey
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		key ^= b
		out[i] = key
	}
	return out
}

// Decrypt reverses Encrypt. Each ciphertext byte XOR'ed with the running
// key yields the plaintext byte; the ciphertext byte becomes the next key.
func Decrypt(ciphertext []byte) []byte {
	key := initialKey
	out := make([]byte, len(ciphertext))
	for i, c := range ciphertext {
		out[i] = c ^ key
		key = c
	}
	return out
}

// EncryptWithHeader obfuscates plaintext and prefixes the result with a
// 4-byte big-endian length of the plaintext (not the ciphertext).
func EncryptWithHeader(plaintext []byte) []byte {
	out := make([]byte, headerLen+len(plaintext))
	binary.BigEndian.PutUint32(out, uint32(len(plaintext)))
	key := initialKey
	for i, b := range plaintext {
		key ^= b
		out[headerLen+i] = key
	}
	return out
}

// DecryptWithHeader strips the 4-byte length prefix and decrypts the
// remainder. It fails with errors.ErrShortFrame when fewer than 4 bytes
// are available and errors.ErrFrameLengthMismatch when the declared
// plaintext length does not match the bytes that follow, so truncated or
// corrupted frames are never silently misread.
func DecryptWithHeader(frame []byte) ([]byte, error) {
	if len(frame) < headerLen {
		return nil, errors.ErrShortFrame
	}
	declared := binary.BigEndian.Uint32(frame)
	body := frame[headerLen:]
	if uint32(len(body)) != declared {
		return nil, errors.ErrFrameLengthMismatch
	}
	return Decrypt(body), nil
}

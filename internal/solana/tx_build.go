package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// SystemProgramID is the native system program address.
const SystemProgramID = "11111111111111111111111111111111"

// system program instruction indexes
const sysInstructionTransfer = 2

// BuildTransferTransaction assembles an unsigned legacy transaction
// moving lamports from one account to another, anchored at blockhash.
// The fee payer is the sender; its signature slot is a zero placeholder
// until the client signs.
func BuildTransferTransaction(fromPubkey, toPubkey string, lamports uint64, blockhash string) (string, error) {
	from, err := decodeKey(fromPubkey, "from pubkey")
	if err != nil {
		return "", err
	}
	to, err := decodeKey(toPubkey, "to pubkey")
	if err != nil {
		return "", err
	}
	program, err := decodeKey(SystemProgramID, "system program id")
	if err != nil {
		return "", err
	}
	hash, err := base58.Decode(blockhash)
	if err != nil || len(hash) != blockhashLen {
		return "", fmt.Errorf("invalid blockhash %q", blockhash)
	}

	// Message: header, account keys, blockhash, instructions.
	var msg []byte

	// 1 required signature, 0 readonly signed, 1 readonly unsigned (program)
	msg = append(msg, 1, 0, 1)

	msg = appendShortvecLen(msg, 3)
	msg = append(msg, from...)
	msg = append(msg, to...)
	msg = append(msg, program...)

	msg = append(msg, hash...)

	// One instruction: system transfer.
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], sysInstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	msg = appendShortvecLen(msg, 1)
	msg = append(msg, 2)                    // program id index
	msg = appendShortvecLen(msg, 2)         // account count
	msg = append(msg, 0, 1)                 // from, to
	msg = appendShortvecLen(msg, len(data)) // data length
	msg = append(msg, data...)

	// Wire form: signature count, placeholder signature, message.
	tx := appendShortvecLen(nil, 1)
	tx = append(tx, make([]byte, signatureLen)...)
	tx = append(tx, msg...)

	return base64.StdEncoding.EncodeToString(tx), nil
}

func decodeKey(pubkey, what string) ([]byte, error) {
	raw, err := base58.Decode(pubkey)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	if len(raw) != pubkeyLen {
		return nil, fmt.Errorf("%s has length %d, want %d", what, len(raw), pubkeyLen)
	}
	return raw, nil
}

// appendShortvecLen appends a compact-u16 length prefix.
func appendShortvecLen(dst []byte, n int) []byte {
	for {
		if n < 0x80 {
			return append(dst, byte(n))
		}
		dst = append(dst, byte(n&0x7f)|0x80)
		n >>= 7
	}
}

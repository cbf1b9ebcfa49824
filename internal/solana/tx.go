package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	signatureLen = 64
	pubkeyLen    = 32
	blockhashLen = 32
)

// DecodedTransaction is the parsed wire form of a serialized transaction.
// Only the fields the engine needs are extracted; instructions are left
// opaque inside Message.
type DecodedTransaction struct {
	// Signatures holds one 64-byte entry per required signer. Unsigned
	// transactions carry all-zero placeholders.
	Signatures [][]byte

	// Message is the exact byte range the signatures sign.
	Message []byte

	// AccountKeys are the static account keys, base58-encoded. The
	// first is the fee payer.
	AccountKeys []string

	// RecentBlockhash is the anchor blockhash, base58-encoded.
	RecentBlockhash string

	// Versioned is true for v0 transactions.
	Versioned bool
}

// DecodeTransaction parses a base64-encoded legacy or v0 transaction.
func DecodeTransaction(txBase64 string) (*DecodedTransaction, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return nil, fmt.Errorf("decode transaction base64: %w", err)
	}

	numSigs, offset, err := decodeShortvecLen(raw, 0)
	if err != nil {
		return nil, fmt.Errorf("read signature count: %w", err)
	}

	sigs := make([][]byte, 0, numSigs)
	for i := 0; i < numSigs; i++ {
		if offset+signatureLen > len(raw) {
			return nil, fmt.Errorf("transaction truncated in signature %d", i)
		}
		sigs = append(sigs, raw[offset:offset+signatureLen])
		offset += signatureLen
	}

	message := raw[offset:]
	if len(message) == 0 {
		return nil, fmt.Errorf("transaction has empty message")
	}

	pos := 0
	versioned := false
	if message[pos]&0x80 != 0 {
		version := message[pos] & 0x7f
		if version != 0 {
			return nil, fmt.Errorf("unsupported transaction version %d", version)
		}
		versioned = true
		pos++
	}

	// 3-byte message header
	if pos+3 > len(message) {
		return nil, fmt.Errorf("message truncated in header")
	}
	pos += 3

	numKeys, pos, err := decodeShortvecLen(message, pos)
	if err != nil {
		return nil, fmt.Errorf("read account key count: %w", err)
	}
	if numKeys == 0 {
		return nil, fmt.Errorf("message has no account keys")
	}

	keys := make([]string, 0, numKeys)
	for i := 0; i < numKeys; i++ {
		if pos+pubkeyLen > len(message) {
			return nil, fmt.Errorf("message truncated in account key %d", i)
		}
		keys = append(keys, base58.Encode(message[pos:pos+pubkeyLen]))
		pos += pubkeyLen
	}

	if pos+blockhashLen > len(message) {
		return nil, fmt.Errorf("message truncated in recent blockhash")
	}
	blockhash := base58.Encode(message[pos : pos+blockhashLen])

	return &DecodedTransaction{
		Signatures:      sigs,
		Message:         message,
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
		Versioned:       versioned,
	}, nil
}

// FeePayer returns the base58 pubkey of the transaction's fee payer.
func (t *DecodedTransaction) FeePayer() string {
	if len(t.AccountKeys) == 0 {
		return ""
	}
	return t.AccountKeys[0]
}

// MessageBase64 returns the message bytes base64-encoded, the form
// getFeeForMessage expects.
func (t *DecodedTransaction) MessageBase64() string {
	return base64.StdEncoding.EncodeToString(t.Message)
}

// Signed reports whether the fee payer's signature slot is populated.
func (t *DecodedTransaction) Signed() bool {
	if len(t.Signatures) == 0 {
		return false
	}
	for _, b := range t.Signatures[0] {
		if b != 0 {
			return true
		}
	}
	return false
}

// VerifySignerSignature checks that the fee payer's signature is a
// valid ed25519 signature over the message by expectedSigner. The
// server relays only transactions provably signed by the user's wallet.
func (t *DecodedTransaction) VerifySignerSignature(expectedSigner string) error {
	if t.FeePayer() != expectedSigner {
		return fmt.Errorf("fee payer %s does not match expected signer %s", t.FeePayer(), expectedSigner)
	}
	if !t.Signed() {
		return fmt.Errorf("transaction is not signed")
	}

	pubkey, err := base58.Decode(expectedSigner)
	if err != nil {
		return fmt.Errorf("decode signer pubkey: %w", err)
	}
	if len(pubkey) != pubkeyLen {
		return fmt.Errorf("signer pubkey has length %d, want %d", len(pubkey), pubkeyLen)
	}
	// Reject pubkeys that are not canonical curve points before handing
	// them to Verify.
	if _, err := new(edwards25519.Point).SetBytes(pubkey); err != nil {
		return fmt.Errorf("signer pubkey is not a valid curve point: %w", err)
	}

	if !ed25519.Verify(ed25519.PublicKey(pubkey), t.Message, t.Signatures[0]) {
		return fmt.Errorf("signature verification failed for signer %s", expectedSigner)
	}
	return nil
}

// FirstSignatureBase58 returns the fee payer's signature base58-encoded,
// which doubles as the transaction's network reference.
func (t *DecodedTransaction) FirstSignatureBase58() string {
	if !t.Signed() {
		return ""
	}
	return base58.Encode(t.Signatures[0])
}

// decodeShortvecLen reads a compact-u16 length prefix at offset.
func decodeShortvecLen(data []byte, offset int) (int, int, error) {
	value := 0
	shift := 0
	for i := 0; i < 3; i++ {
		if offset >= len(data) {
			return 0, 0, fmt.Errorf("shortvec truncated")
		}
		b := data[offset]
		offset++
		value |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, offset, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("shortvec too long")
}

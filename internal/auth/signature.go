package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stellar/go/keypair"

	"github.com/ederziomek/real-digital-token/internal/identity"
)

// Request signing headers.
const (
	HeaderSigner         = "X-Reserve-Signer"
	HeaderTimestamp      = "X-Reserve-Timestamp"
	HeaderSignature      = "X-Reserve-Signature"
	HeaderIdempotencyKey = "Idempotency-Key"
)

var (
	ErrMissingSignature = errors.New("missing request signature")
	ErrStaleSignature   = errors.New("request timestamp outside allowed window")
	ErrBadSignature     = errors.New("signature mismatch")
)

// Request is the part of an HTTP request covered by the signature.
type Request struct {
	Method         string
	Path           string
	IdempotencyKey string
	Body           []byte
}

// Headers carries the signature of a request.
type Headers struct {
	Signer    string
	Timestamp string
	Signature string
}

// CanonicalMessage renders the bytes that get signed for req at timestamp.
func CanonicalMessage(req Request, timestamp int64) []byte {
	digest := sha256.Sum256(req.Body)
	var b strings.Builder
	b.WriteString(strings.ToUpper(req.Method))
	b.WriteByte('\n')
	b.WriteString(req.Path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(req.IdempotencyKey)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(digest[:]))
	return []byte(b.String())
}

// Sign produces the headers for req signed by kp at time now.
func Sign(kp *keypair.Full, req Request, now time.Time) (Headers, error) {
	ts := now.Unix()
	sig, err := kp.SignBase64(CanonicalMessage(req, ts))
	if err != nil {
		return Headers{}, fmt.Errorf("sign request: %w", err)
	}
	return Headers{
		Signer:    kp.Address(),
		Timestamp: strconv.FormatInt(ts, 10),
		Signature: sig,
	}, nil
}

// Verify checks h against req and returns the signer address. Timestamps
// further than maxSkew from now in either direction are rejected.
func Verify(h Headers, req Request, now time.Time, maxSkew time.Duration) (string, error) {
	if h.Signer == "" || h.Timestamp == "" || h.Signature == "" {
		return "", ErrMissingSignature
	}

	signer, err := identity.ParseAddress(h.Signer)
	if err != nil {
		return "", err
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: malformed timestamp", ErrStaleSignature)
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if maxSkew > 0 && skew > maxSkew {
		return "", ErrStaleSignature
	}

	sig, err := base64.StdEncoding.DecodeString(h.Signature)
	if err != nil {
		return "", fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	if err := signer.Verify(CanonicalMessage(req, ts), sig); err != nil {
		return "", ErrBadSignature
	}
	return signer.Address(), nil
}

// Package archive keeps content-addressed copies of reconciliation run
// reports. Reports are canonicalized (RFC 8785) before hashing, so the same
// report always has the same reference.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

const refPrefix = "sha256:"

var (
	ErrNotFound   = errors.New("archive: report not found")
	ErrInvalidRef = errors.New("archive: invalid report reference")
)

// Store is a content-addressed blob store.
type Store interface {
	// Put stores data and returns its "sha256:<hex>" reference. Storing the
	// same bytes twice is a no-op.
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Exists(ctx context.Context, ref string) (bool, error)
}

// Digest returns the hex digest and reference for data.
func Digest(data []byte) (hexDigest, ref string) {
	sum := sha256.Sum256(data)
	hexDigest = hex.EncodeToString(sum[:])
	return hexDigest, refPrefix + hexDigest
}

// ParseRef validates ref and returns its hex digest.
func ParseRef(ref string) (string, error) {
	digest, ok := strings.CutPrefix(ref, refPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if b, err := hex.DecodeString(digest); err != nil || len(b) != sha256.Size {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return digest, nil
}

func objectName(prefix, digest string) string {
	return prefix + digest + ".json"
}

// Canonical marshals v to RFC 8785 canonical JSON.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("archive: marshal report: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("archive: canonicalize report: %w", err)
	}
	return out, nil
}

// Save canonicalizes v and stores it.
func Save(ctx context.Context, s Store, v any) (string, error) {
	data, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return s.Put(ctx, data)
}

// Load fetches ref and decodes it into v.
func Load(ctx context.Context, s Store, ref string, v any) error {
	data, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("archive: decode %s: %w", ref, err)
	}
	return nil
}

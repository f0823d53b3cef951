package release

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/pirakansa/addonrepo/internal/cli/shared"
)

const (
	DigestAlgorithmBLAKE3 = "blake3"
	DigestAlgorithmSHA256 = "sha256"
	DigestAlgorithmMD5    = "md5"
)

var ErrDigestMismatch = errors.New("checksum mismatch")

// VerifyDigest checks content against an "algorithm:hex" value. An empty
// value always passes.
func VerifyDigest(content []byte, spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	algorithm, digest, err := ParseDigestSpec(spec)
	if err != nil {
		return err
	}
	computed, err := ComputeDigest(content, algorithm)
	if err != nil {
		return err
	}
	if computed != digest {
		return fmt.Errorf("%w: %s expected %s got %s", ErrDigestMismatch, algorithm, digest, computed)
	}
	return nil
}

func ParseDigestSpec(value string) (string, string, error) {
	raw := strings.TrimSpace(strings.ToLower(value))
	algorithm, digest, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(algorithm) == "" || strings.TrimSpace(digest) == "" {
		return "", "", fmt.Errorf("invalid checksum format %q", value)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", "", fmt.Errorf("invalid checksum hex %q", value)
	}
	return algorithm, digest, nil
}

func ComputeDigest(content []byte, algorithm string) (string, error) {
	switch algorithm {
	case DigestAlgorithmBLAKE3:
		return shared.BLAKE3Hex(content), nil
	case DigestAlgorithmSHA256:
		return shared.SHA256Hex(content), nil
	case DigestAlgorithmMD5:
		return shared.MD5Hex(content), nil
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}
}

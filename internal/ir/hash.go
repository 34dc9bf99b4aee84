package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent  = "reflred/event/v1"
	DomainSource = "reflred/source/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID of a journal event.
// The ID is stable across replays given the same inputs.
func EventID(sessionID, kind string, run RunKey, seq int64, detail map[string]string) (string, error) {
	if detail == nil {
		detail = map[string]string{}
	}
	obj := map[string]any{
		"session_id": sessionID,
		"kind":       kind,
		"run":        string(run),
		"seq":        seq,
		"detail":     detail,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// SourceFingerprint identifies a source path independent of separator
// spacing and component order.
func SourceFingerprint(path FilePath) string {
	canonical, err := MarshalCanonical(path.SinglePaths())
	if err != nil {
		// []string always marshals
		panic(err)
	}
	return hashWithDomain(DomainSource, canonical)
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(sessionID, kind string, run RunKey, seq int64, detail map[string]string) string {
	id, err := EventID(sessionID, kind, run, seq, detail)
	if err != nil {
		panic(err)
	}
	return id
}

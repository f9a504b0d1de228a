package database

import (
	"encoding/hex"
	"strings"

	"github.com/go-json-experiment/json"
	"golang.org/x/crypto/blake2b"

	"github.com/contactdiscovery/engine/internal/contact"
)

// hashSignature derives a stable identity for a contact across listings
// from (method, value, normalized domain), so the offline dedup pass can
// cluster the same real-world contact observed on different listings
// (spec.md §4.7 step 2).
func hashSignature(method contact.Method, value, domain string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(string(method)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.ToLower(value)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.ToLower(domain)))
	return hex.EncodeToString(h.Sum(nil))
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func decodeMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeStrings(ss []string) ([]byte, error) {
	if ss == nil {
		ss = []string{}
	}
	return json.Marshal(ss)
}

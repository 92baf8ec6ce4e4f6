package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainQueryKey separates query-key hashes from any other hash the module
// may compute. The version suffix allows the encoding to change later.
const DomainQueryKey = "querypipe/query/v1"

// Key identifies a cached result.
type Key string

// KeyFunc derives a Key from a Query.
type KeyFunc func(Query) (Key, error)

// TextKey derives the key from the query text alone.
//
// Two queries with the same text and different parameters share a key and
// therefore a cached result. Use it only for parameterless queries or when
// that sharing is intended.
func TextKey(q Query) (Key, error) {
	return Key(q.Text), nil
}

// QueryKey derives the key from the query text and its ordered parameters:
//
//	hex(SHA256(DomainQueryKey + 0x00 + canonical({"params":[...],"text":"..."})))
//
// Parameters keep their JSON type in the encoding, so Int(1) and String("1")
// differ. Numerically equal Int and Float values share a key.
func QueryKey(q Query) (Key, error) {
	var params bytes.Buffer
	params.WriteByte('[')
	for i, p := range q.Params {
		if i > 0 {
			params.WriteByte(',')
		}
		if err := writeCanonical(&params, p); err != nil {
			return "", fmt.Errorf("query key: param[%d]: %w", i, err)
		}
	}
	params.WriteByte(']')

	canonical := marshalCanonicalObject(map[string][]byte{
		"text":   canonicalString(q.Text),
		"params": params.Bytes(),
	})
	return Key(hashWithDomain(DomainQueryKey, canonical)), nil
}

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Package models defines core data structures for keyword records, run
// requests, and run state.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Source records where a keyword payload came from.
type Source string

const (
	// SourceAPI marks records fetched from the Wordstat API.
	SourceAPI Source = "api"
	// SourceCache marks records served from the result cache.
	SourceCache Source = "cache"
)

// KeywordRecord is one scored keyword phrase discovered during a run.
// Records are immutable once created; the first record seen for a phrase wins.
type KeywordRecord struct {
	Phrase string `json:"phrase"`
	Count  int64  `json:"count"`
	Depth  int    `json:"depth"`
	Seed   string `json:"seed,omitempty"`
	Source Source `json:"source,omitempty"`
}

// UnmarshalJSON decodes a record tolerating malformed persisted fields:
// a count that is not an integer (including quoted numbers from the API)
// degrades to 0, and a missing or malformed depth degrades to 1. Loading
// persisted data never fails on a bad field.
func (r *KeywordRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Phrase string          `json:"phrase"`
		Count  json.RawMessage `json:"count"`
		Depth  json.RawMessage `json:"depth"`
		Seed   string          `json:"seed"`
		Source Source          `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Phrase = raw.Phrase
	r.Count = flexInt(raw.Count, 0)
	if r.Count < 0 {
		r.Count = 0
	}
	r.Depth = int(flexInt(raw.Depth, 1))
	if r.Depth < 0 {
		r.Depth = 1
	}
	r.Seed = raw.Seed
	r.Source = raw.Source
	return nil
}

// FlexCount parses a count field that may arrive as a JSON number or a
// numeric string. Unparseable values degrade to 0.
func FlexCount(raw json.RawMessage) int64 {
	return flexInt(raw, 0)
}

// flexInt parses raw as an integer, accepting both JSON numbers and numeric
// strings ("12300"). Anything else, including null or absence, yields def.
func flexInt(raw json.RawMessage, def int64) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def
	}
	s := string(raw)
	if raw[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return def
		}
		s = unquoted
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Tolerate floats in persisted data ("12300.0").
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return int64(f)
		}
		return def
	}
	return n
}

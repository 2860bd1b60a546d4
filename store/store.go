// Package store caches verified method bodies. Entries are keyed by a
// content hash of everything verification depends on, so a cached entry is
// valid for any body with the same key.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/verify"
)

var log = commonlog.GetLogger("avmprep.store")

// ErrNotFound is returned by Get when no entry exists for a key.
var ErrNotFound = errors.New("store: entry not found")

// formatVersion is mixed into every key; bump it when Entry or the
// verifier's output changes shape.
const formatVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Key identifies a method body by content.
type Key [32]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// keyInput is the canonical form hashed into a Key. Only pool entries the
// decoder reads are included: integer constants by value, the other tables
// by size for range checks.
type keyInput struct {
	Version        int             `cbor:"1,keyasint"`
	Code           []byte          `cbor:"2,keyasint"`
	NumLocals      uint32          `cbor:"3,keyasint"`
	InitScopeDepth uint32          `cbor:"4,keyasint"`
	MaxScopeDepth  uint32          `cbor:"5,keyasint"`
	Exceptions     []abc.Exception `cbor:"6,keyasint,omitempty"`
	Ints           []int32         `cbor:"7,keyasint,omitempty"`
	Uints          []uint32        `cbor:"8,keyasint,omitempty"`
	Doubles        int             `cbor:"9,keyasint"`
	Strings        int             `cbor:"10,keyasint"`
	Multinames     int             `cbor:"11,keyasint"`
}

// KeyOf computes the cache key of a method body.
func KeyOf(body *abc.MethodBody) (Key, error) {
	in := keyInput{
		Version:        formatVersion,
		Code:           body.Code,
		NumLocals:      body.NumLocals,
		InitScopeDepth: body.InitScopeDepth,
		MaxScopeDepth:  body.MaxScopeDepth,
		Exceptions:     body.Exceptions,
	}
	if p := body.Pool; p != nil {
		in.Ints = p.Ints
		in.Uints = p.Uints
		in.Doubles = len(p.Doubles)
		in.Strings = len(p.Strings)
		in.Multinames = len(p.Multinames)
	}
	data, err := cborEncMode.Marshal(&in)
	if err != nil {
		return Key{}, fmt.Errorf("store: encode key: %w", err)
	}
	return sha256.Sum256(data), nil
}

// Entry is the stored form of a verified method.
type Entry struct {
	Code       []abc.Instruction `cbor:"1,keyasint"`
	Exceptions []abc.Exception   `cbor:"2,keyasint,omitempty"`
	Reached    []bool            `cbor:"3,keyasint"`
	// RunID names the preparation run that produced the entry.
	RunID string `cbor:"4,keyasint,omitempty"`
}

// NewEntry captures a verified method.
func NewEntry(m *verify.Method, runID string) *Entry {
	return &Entry{
		Code:       m.Code,
		Exceptions: m.Exceptions,
		Reached:    m.Reached,
		RunID:      runID,
	}
}

// Method rebuilds the verified method for body.
func (e *Entry) Method(body *abc.MethodBody) (*verify.Method, error) {
	code := make([]abc.Instruction, len(e.Code))
	for i := range e.Code {
		code[i] = e.Code[i].Clone()
	}
	return verify.Restore(body, code, e.Exceptions, append([]bool(nil), e.Reached...))
}

// MarshalEntry serializes an Entry to CBOR bytes.
func MarshalEntry(e *Entry) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEntry deserializes an Entry from CBOR bytes.
func UnmarshalEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("store: unmarshal entry: %w", err)
	}
	return &e, nil
}

// Store is a verified-method cache. Implementations are safe for concurrent
// use.
type Store interface {
	// Get returns the entry for key, or ErrNotFound.
	Get(ctx context.Context, key Key) (*Entry, error)
	// Put stores an entry, replacing any existing one.
	Put(ctx context.Context, key Key, e *Entry) error
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
	Close() error
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package profile describes scan alternatives as data so the CLI can scan
// streams whose framing is only known at runtime.
package profile

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/Thermoquad/framescan/pkg/logging"
)

// Errors returned by Validate, wrapped with the offending location
var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrUnknownTarget  = errors.New("unknown chunk target")
	ErrNestedChunk    = errors.New("chunk inside a chunk separator")
	ErrUnknownType    = errors.New("unknown scalar type")
	ErrDuplicateName  = errors.New("duplicate name")
	ErrEmptyFormat    = errors.New("empty format")
	ErrBufferTooSmall = errors.New("buffer too small")
)

// Profile is a named set of alternatives plus the buffers they scan with.
type Profile struct {
	Name string `json:"name" mapstructure:"name"`
	// Buffer is the capacity of the source queue in bytes.
	Buffer int `json:"buffer" mapstructure:"buffer"`
	// Chunks maps each chunk target to its record queue capacity in bytes.
	Chunks       map[string]int `json:"chunks,omitempty" mapstructure:"chunks"`
	Alternatives []Alternative  `json:"alternatives" mapstructure:"alternatives"`
}

// Alternative is one named Format, tried in profile order.
type Alternative struct {
	Name   string    `json:"name" mapstructure:"name"`
	Format []Element `json:"format" mapstructure:"format"`
}

// Element is exactly one matcher: a text token, a hex token, a scalar field
// or a chunk.
type Element struct {
	Token  string  `json:"token,omitempty" mapstructure:"token"`
	Hex    string  `json:"hex,omitempty" mapstructure:"hex"`
	Scalar *Scalar `json:"scalar,omitempty" mapstructure:"scalar"`
	Chunk  *Chunk  `json:"chunk,omitempty" mapstructure:"chunk"`
}

// Scalar binds a fixed-width field.
type Scalar struct {
	Field string `json:"field" mapstructure:"field"`
	Type  string `json:"type" mapstructure:"type"`
	// Order is "little" (default) or "big".
	Order string `json:"order,omitempty" mapstructure:"order"`
}

// Chunk binds a length-prefixed payload to a chunk target.
type Chunk struct {
	Target    string    `json:"target" mapstructure:"target"`
	Separator []Element `json:"separator,omitempty" mapstructure:"separator"`
}

// Element kinds
const (
	KindToken  = "token"
	KindHex    = "hex"
	KindScalar = "scalar"
	KindChunk  = "chunk"
)

// scalarSizes lists the supported scalar types and their widths
var scalarSizes = map[string]int{
	"uint8":   1,
	"int8":    1,
	"uint16":  2,
	"int16":   2,
	"uint32":  4,
	"int32":   4,
	"uint64":  8,
	"int64":   8,
	"float32": 4,
	"float64": 8,
}

// ScalarSize returns the width in bytes of a scalar type name.
func ScalarSize(typ string) (int, bool) {
	n, ok := scalarSizes[typ]
	return n, ok
}

// Kind returns the element kind, or "" if zero or several kinds are set.
func (e Element) Kind() string {
	kind := ""
	count := 0
	if e.Token != "" {
		kind = KindToken
		count++
	}
	if e.Hex != "" {
		kind = KindHex
		count++
	}
	if e.Scalar != nil {
		kind = KindScalar
		count++
	}
	if e.Chunk != nil {
		kind = KindChunk
		count++
	}
	if count != 1 {
		return ""
	}
	return kind
}

// Literal returns the bytes matched by a token or hex element.
func (e Element) Literal() ([]byte, error) {
	switch e.Kind() {
	case KindToken:
		return []byte(e.Token), nil
	case KindHex:
		b, err := hex.DecodeString(e.Hex)
		if err != nil {
			return nil, fmt.Errorf("hex %q: %w", e.Hex, err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("hex %q: %w", e.Hex, ErrEmptyFormat)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: element is not a literal", ErrInvalidProfile)
	}
}

// Default returns the built-in profile: DATA<len>:<payload> frames stored in
// the "records" target.
func Default() *Profile {
	return &Profile{
		Name:   "data",
		Buffer: 512,
		Chunks: map[string]int{"records": 1024},
		Alternatives: []Alternative{
			{
				Name: "data",
				Format: []Element{
					{Token: "DATA"},
					{Chunk: &Chunk{Target: "records", Separator: []Element{{Token: ":"}}}},
				},
			},
		},
	}
}

// Load reads and validates a JSON profile from path.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logging.LogDebug(logging.ComponentProfile, "loaded profile",
		"path", path, "name", p.Name, "alternatives", len(p.Alternatives))
	return p, nil
}

// Decode reads and validates a JSON profile.
func Decode(r io.Reader) (*Profile, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return FromMap(raw)
}

// FromMap converts a generic document into a validated Profile. Numbers given
// as strings are accepted; unknown keys are rejected.
func FromMap(raw map[string]interface{}) (*Profile, error) {
	var p Profile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that the profile can be compiled into scan alternatives.
func (p *Profile) Validate() error {
	if len(p.Alternatives) == 0 {
		return fmt.Errorf("%w: no alternatives", ErrInvalidProfile)
	}
	for target, capacity := range p.Chunks {
		if capacity < 1 {
			return fmt.Errorf("%w: chunk target %q has capacity %d", ErrBufferTooSmall, target, capacity)
		}
	}

	names := make(map[string]bool)
	for i, alt := range p.Alternatives {
		if alt.Name == "" {
			return fmt.Errorf("%w: alternative %d has no name", ErrInvalidProfile, i)
		}
		if names[alt.Name] {
			return fmt.Errorf("%w: alternative %q", ErrDuplicateName, alt.Name)
		}
		names[alt.Name] = true

		if len(alt.Format) == 0 {
			return fmt.Errorf("alternative %q: %w", alt.Name, ErrEmptyFormat)
		}
		// Field names are scoped to their alternative, as Event.Fields is
		if err := p.validateElements(alt.Format, make(map[string]bool), false); err != nil {
			return fmt.Errorf("alternative %q: %w", alt.Name, err)
		}
		if need := MinLength(alt.Format); need > p.Buffer {
			return fmt.Errorf("alternative %q: %w: needs %d bytes, buffer is %d",
				alt.Name, ErrBufferTooSmall, need, p.Buffer)
		}
	}
	return nil
}

func (p *Profile) validateElements(elements []Element, fields map[string]bool, inSeparator bool) error {
	for i, e := range elements {
		switch e.Kind() {
		case KindToken, KindHex:
			if _, err := e.Literal(); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		case KindScalar:
			s := e.Scalar
			if s.Field == "" {
				return fmt.Errorf("%w: element %d: scalar has no field", ErrInvalidProfile, i)
			}
			if fields[s.Field] {
				return fmt.Errorf("%w: field %q", ErrDuplicateName, s.Field)
			}
			fields[s.Field] = true
			if _, ok := ScalarSize(s.Type); !ok {
				return fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
			}
			switch s.Order {
			case "", "little", "big":
			default:
				return fmt.Errorf("%w: element %d: byte order %q", ErrInvalidProfile, i, s.Order)
			}
		case KindChunk:
			if inSeparator {
				return ErrNestedChunk
			}
			if _, ok := p.Chunks[e.Chunk.Target]; !ok {
				return fmt.Errorf("%w: %q", ErrUnknownTarget, e.Chunk.Target)
			}
			if err := p.validateElements(e.Chunk.Separator, fields, true); err != nil {
				return fmt.Errorf("separator: %w", err)
			}
		default:
			return fmt.Errorf("%w: element %d must set exactly one of token, hex, scalar, chunk",
				ErrInvalidProfile, i)
		}
	}
	return nil
}

// MinLength returns the fewest bytes a match of elements can span: literals,
// scalars, one length digit per chunk and its separator.
func MinLength(elements []Element) int {
	n := 0
	for _, e := range elements {
		switch e.Kind() {
		case KindToken, KindHex:
			lit, _ := e.Literal()
			n += len(lit)
		case KindScalar:
			size, _ := ScalarSize(e.Scalar.Type)
			n += size
		case KindChunk:
			n += 1 + MinLength(e.Chunk.Separator)
		}
	}
	return n
}

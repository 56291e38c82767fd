package listing

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/il"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("listing: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// DecodeYAML reads one document. Unknown keys are an error.
func DecodeYAML(r io.Reader) (*Document, error) {
	var d Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "yaml listing")
	}
	return &d, nil
}

// EncodeYAML writes d with two-space indentation.
func EncodeYAML(w io.Writer, d *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "yaml listing")
	}
	return enc.Close()
}

// MarshalCBOR returns the canonical CBOR encoding of d.
func MarshalCBOR(d *Document) ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// UnmarshalCBOR decodes a document produced by MarshalCBOR.
func UnmarshalCBOR(data []byte) (*Document, error) {
	var d Document
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "cbor listing")
	}
	return &d, nil
}

// ParseYAML decodes a YAML listing held in memory.
func ParseYAML(src string) (*Document, error) {
	return DecodeYAML(strings.NewReader(src))
}

// Load reads a listing file, choosing the codec by extension: .cbor is
// CBOR, anything else YAML.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, fmt.Sprintf("cannot read %s", path))
	}
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		return UnmarshalCBOR(data)
	}
	return DecodeYAML(bytes.NewReader(data))
}

// Save writes d to path in the codec its extension selects.
func Save(path string, d *Document) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		var err error
		if data, err = MarshalCBOR(d); err != nil {
			return errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "cbor listing")
		}
	} else {
		var buf bytes.Buffer
		if err := EncodeYAML(&buf, d); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, fmt.Sprintf("cannot write %s", path))
	}
	return nil
}

// LoadMethod reads a listing file and resolves it.
func LoadMethod(path string) (*il.Method, error) {
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	return d.Method(nil)
}

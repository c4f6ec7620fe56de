package hclplan

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// DecodeDocument converts a YAML or JSON document into a cty value. An
// empty document yields a null value.
func DecodeDocument(data []byte) (cty.Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return cty.NilVal, fmt.Errorf("failed to parse document: %w", err)
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return cty.NilVal, fmt.Errorf("document is not representable as JSON: %w", err)
	}

	var v ctyjson.SimpleJSONValue
	if err := v.UnmarshalJSON(buf); err != nil {
		return cty.NilVal, fmt.Errorf("failed to convert document: %w", err)
	}
	return v.Value, nil
}

// EncodeJSON renders v as indented JSON. Unknown values are rejected.
func EncodeJSON(v cty.Value) ([]byte, error) {
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("result contains unknown values")
	}
	if v.IsNull() {
		return []byte("null\n"), nil
	}
	raw, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

package impexp

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

const yamlContentType = "application/yaml"

// YAMLCodec reads and writes catalog documents. Unknown keys are rejected.
type YAMLCodec struct{}

var _ ports.CatalogCodec = (*YAMLCodec)(nil)

func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

func (c *YAMLCodec) ContentType() string {
	return yamlContentType
}

func (c *YAMLCodec) Encode(catalog domain.Catalog) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(ToYAML(catalog)); err != nil {
		return nil, fmt.Errorf("encode catalog yaml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode catalog yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *YAMLCodec) Decode(raw []byte) (domain.Catalog, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)

	var dto YAMLCatalog
	if err := decoder.Decode(&dto); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Catalog{}, domain.NewFieldError("catalog", "is empty")
		}
		return domain.Catalog{}, fmt.Errorf("decode catalog yaml: %w", err)
	}
	return MapCatalog(dto)
}

package encoding

import (
	"io"
	"net/http"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
)

var jsonContentType = []string{"application/json; charset=utf-8"}

// Codec encodes and decodes JSON payloads. Strict codecs reject unknown fields.
type Codec struct {
	api     jsoniter.API
	strict  bool
	encodes int64
	decodes int64
	errors  int64
}

// NewCodec creates a codec compatible with encoding/json tags and ordering
func NewCodec(strict bool) *Codec {
	return &Codec{
		api: jsoniter.Config{
			EscapeHTML:             true,
			SortMapKeys:            true,
			ValidateJsonRawMessage: true,
			DisallowUnknownFields:  strict,
		}.Froze(),
		strict: strict,
	}
}

// Marshal encodes v without indentation
func (c *Codec) Marshal(v interface{}) ([]byte, error) {
	atomic.AddInt64(&c.encodes, 1)
	data, err := c.api.Marshal(v)
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
	}
	return data, err
}

// MarshalIndent encodes v with two-space indentation
func (c *Codec) MarshalIndent(v interface{}) ([]byte, error) {
	atomic.AddInt64(&c.encodes, 1)
	data, err := c.api.MarshalIndent(v, "", "  ")
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
	}
	return data, err
}

// Unmarshal decodes data into v
func (c *Codec) Unmarshal(data []byte, v interface{}) error {
	atomic.AddInt64(&c.decodes, 1)
	if err := c.api.Unmarshal(data, v); err != nil {
		atomic.AddInt64(&c.errors, 1)
		return err
	}
	return nil
}

// Decode reads a single JSON document from r into v
func (c *Codec) Decode(r io.Reader, v interface{}) error {
	atomic.AddInt64(&c.decodes, 1)
	if err := c.api.NewDecoder(r).Decode(v); err != nil {
		atomic.AddInt64(&c.errors, 1)
		return err
	}
	return nil
}

// Render returns a gin renderer that writes v with this codec
func (c *Codec) Render(v interface{}) JSON {
	return JSON{Codec: c, Data: v}
}

// GetStats returns codec usage counters
func (c *Codec) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"strict":  c.strict,
		"encodes": atomic.LoadInt64(&c.encodes),
		"decodes": atomic.LoadInt64(&c.decodes),
		"errors":  atomic.LoadInt64(&c.errors),
	}
}

// JSON implements gin's render.Render
type JSON struct {
	Codec *Codec
	Data  interface{}
}

// Render writes the encoded payload
func (r JSON) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	codec := r.Codec
	if codec == nil {
		codec = Default
	}
	data, err := codec.Marshal(r.Data)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteContentType sets the JSON content type when unset
func (r JSON) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if val := header["Content-Type"]; len(val) == 0 {
		header["Content-Type"] = jsonContentType
	}
}

// Default is the lenient codec used for responses and stored documents
var Default = NewCodec(false)

// Strict is the codec used for request bodies
var Strict = NewCodec(true)

// MarshalJSON marshals data using the default codec
func MarshalJSON(v interface{}) ([]byte, error) {
	return Default.Marshal(v)
}

// UnmarshalJSON unmarshals data using the default codec
func UnmarshalJSON(data []byte, v interface{}) error {
	return Default.Unmarshal(data, v)
}

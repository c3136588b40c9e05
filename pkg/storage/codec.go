package storage

import (
	"bytes"
	"encoding/json"

	"github.com/klauspost/compress/zstd"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vjranagit/leveltracker/pkg/types"
)

// zstdMagic starts every zstd frame
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec turns the measurement collection into a slot payload and back.
// The payload is the plain JSON array; with a compression level above zero it is wrapped in
// a zstd frame. Decode accepts both forms regardless of the configured level.
type Codec struct {
	level   int
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec. Level 0 disables compression, 1-4 select zstd speed presets.
func NewCodec(level int) (*Codec, error) {
	if level < 0 || level > 4 {
		return nil, goerr.New("compression level must be between 0 and 4", goerr.V("level", level))
	}

	c := &Codec{level: level}

	if level > 0 {
		encLevel := zstd.SpeedDefault
		switch level {
		case 1:
			encLevel = zstd.SpeedFastest
		case 2:
			encLevel = zstd.SpeedDefault
		case 3:
			encLevel = zstd.SpeedBetterCompression
		case 4:
			encLevel = zstd.SpeedBestCompression
		}

		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create encoder")
		}
		c.encoder = encoder
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create decoder")
	}
	c.decoder = decoder

	return c, nil
}

// Encode serializes the collection
func (c *Codec) Encode(items []types.Measurement) ([]byte, error) {
	if items == nil {
		items = []types.Measurement{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal measurements")
	}

	if c.encoder == nil {
		return data, nil
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// Decode parses a payload produced by Encode (compressed or not)
func (c *Codec) Decode(data []byte) ([]types.Measurement, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		decompressed, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, goerr.Wrap(err, "decompression failed")
		}
		data = decompressed
	}

	var items []types.Measurement
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal measurements", goerr.V("size", len(data)))
	}
	if items == nil {
		items = []types.Measurement{}
	}
	return items, nil
}

// Close closes the compressor resources
func (c *Codec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}

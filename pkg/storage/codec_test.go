package storage

import (
	"bytes"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/vjranagit/leveltracker/pkg/types"
)

var sampleMeasurements = []types.Measurement{
	{ID: 1704873600000, Date: "2024-01-10", Time: "08:00", Level: 15.2, Notes: "fasted", Timestamp: 1704873600000},
	{ID: 1704873600001, Date: "2024-01-11", Time: "07:30", Level: 36.4, Timestamp: 1704958200000},
}

func TestCodecPlainJSON(t *testing.T) {
	c, err := NewCodec(0)
	gt.NoError(t, err).Required()
	defer c.Close()

	data, err := c.Encode(sampleMeasurements[:1])
	gt.NoError(t, err).Required()
	gt.Value(t, string(data)).Equal(
		`[{"id":1704873600000,"date":"2024-01-10","time":"08:00","level":15.2,"notes":"fasted","timestamp":1704873600000}]`,
	)

	t.Run("empty collection encodes as empty array", func(t *testing.T) {
		data, err := c.Encode(nil)
		gt.NoError(t, err).Required()
		gt.Value(t, string(data)).Equal(`[]`)
	})
}

func TestCodecCompressed(t *testing.T) {
	for _, level := range []int{1, 2, 3, 4} {
		c, err := NewCodec(level)
		gt.NoError(t, err).Required()

		data, err := c.Encode(sampleMeasurements)
		gt.NoError(t, err).Required()
		gt.Bool(t, bytes.HasPrefix(data, zstdMagic)).True()

		got, err := c.Decode(data)
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal(sampleMeasurements)
		c.Close()
	}
}

func TestCodecDecodeAcceptsBothForms(t *testing.T) {
	plain, err := NewCodec(0)
	gt.NoError(t, err).Required()
	defer plain.Close()
	zstdCodec, err := NewCodec(3)
	gt.NoError(t, err).Required()
	defer zstdCodec.Close()

	compressed, err := zstdCodec.Encode(sampleMeasurements)
	gt.NoError(t, err).Required()
	got, err := plain.Decode(compressed)
	gt.NoError(t, err).Required()
	gt.Array(t, got).Length(2)

	raw, err := plain.Encode(sampleMeasurements)
	gt.NoError(t, err).Required()
	got, err = zstdCodec.Decode(raw)
	gt.NoError(t, err).Required()
	gt.Value(t, got).Equal(sampleMeasurements)
}

func TestCodecDecodeErrors(t *testing.T) {
	c, err := NewCodec(0)
	gt.NoError(t, err).Required()
	defer c.Close()

	_, err = c.Decode([]byte(`{not json`))
	gt.Error(t, err)

	_, err = c.Decode(append(append([]byte{}, zstdMagic...), 0x00, 0x01))
	gt.Error(t, err)

	got, err := c.Decode([]byte(`null`))
	gt.NoError(t, err).Required()
	gt.Array(t, got).Length(0)
}

func TestNewCodecRejectsBadLevel(t *testing.T) {
	_, err := NewCodec(-1)
	gt.Error(t, err)
	_, err = NewCodec(5)
	gt.Error(t, err)
}

package cache

import (
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll
// calls, so one pair serves every store in the process.
var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func initCodec() error {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return codecErr
}

// compress returns the zstd form of data and true, or data unchanged and
// false when compression would not make it smaller.
func compress(data []byte) ([]byte, bool) {
	if err := initCodec(); err != nil {
		return data, false
	}
	out := encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(out) >= len(data) {
		return data, false
	}
	return out, true
}

func decompress(data []byte) ([]byte, error) {
	if err := initCodec(); err != nil {
		return nil, errors.Join(ErrUnmarshal, err)
	}
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Join(ErrUnmarshal, err)
	}
	return out, nil
}

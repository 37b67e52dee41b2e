package compress

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
)

// Optimizer compresses one file in place. It is a black box to the engine:
// the only contract is that shrunk is true exactly when the file on disk was
// rewritten strictly smaller, and that a false return leaves the file
// untouched.
type Optimizer interface {
	Optimize(ctx context.Context, path string, aggressive bool) (shrunk bool, before, after int64, err error)
}

// DefaultJPEGQuality is the re-encode quality used in aggressive mode.
const DefaultJPEGQuality = 80

// CodecOptimizer re-encodes PNG, JPEG, and GIF assets with the standard
// image codecs. PNG and GIF re-encodes are lossless; JPEG is only touched in
// aggressive mode because a re-encode is inherently lossy.
type CodecOptimizer struct {
	// JPEGQuality overrides DefaultJPEGQuality when positive.
	JPEGQuality int
}

// Optimize re-encodes the file at path and rewrites it only when the result
// is strictly smaller than the original.
func (o *CodecOptimizer) Optimize(ctx context.Context, path string, aggressive bool) (bool, int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, 0, err
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return false, 0, 0, fmt.Errorf("read %s: %w", path, err)
	}
	before := int64(len(original))

	encoded, err := o.reencode(original, aggressive)
	if err != nil {
		return false, before, before, fmt.Errorf("optimize %s: %w", path, err)
	}
	if encoded == nil || int64(len(encoded)) >= before {
		return false, before, before, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, before, before, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, encoded, info.Mode().Perm()); err != nil {
		return false, before, before, fmt.Errorf("write %s: %w", path, err)
	}
	return true, before, int64(len(encoded)), nil
}

// reencode returns the recompressed bytes, or nil when the format is left
// alone under the current mode.
func (o *CodecOptimizer) reencode(data []byte, aggressive bool) ([]byte, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}

	var out bytes.Buffer
	switch format {
	case "png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode png: %w", err)
		}
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&out, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}

	case "jpeg":
		if !aggressive {
			return nil, nil
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		quality := o.JPEGQuality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}

	case "gif":
		// DecodeAll keeps every frame of animated files.
		img, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		if err := gif.EncodeAll(&out, img); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}

	return out.Bytes(), nil
}

package commit

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Decoders for the formats the engine produces.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/optibot-run/optibot/pkg/compress"
)

// CorruptionError reports a compressed file that no longer decodes as an
// image after the signed-commit rewrite. It is fatal to the run: nothing is
// pushed.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupted image %s after commit rewrite: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// VerifyImages re-reads every result file from the checked-out tree and
// decodes it as an image of its declared format.
func VerifyImages(root string, results []compress.Result) error {
	for _, r := range results {
		if err := decodeImage(filepath.Join(root, filepath.FromSlash(r.Path))); err != nil {
			return &CorruptionError{Path: r.Path, Err: err}
		}
	}
	return nil
}

func decodeImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, _, err = image.Decode(f)
	return err
}

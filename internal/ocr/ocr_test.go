package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout string
	err    error
	name   string
	args   []string
	seen   []byte
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name, f.args = name, args
	if len(args) > 0 {
		f.seen, _ = os.ReadFile(args[0])
	}
	if f.err != nil {
		return nil, []byte("tesseract: cannot read"), f.err
	}
	return []byte(f.stdout), nil, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractTextNormalizesOutput(t *testing.T) {
	r := &fakeRunner{stdout: "  KANTIN SEHAT  \r\n\r\nPOS-080425-110\t\tRp 20.000\n-----\n\n\n\nTerima kasih\f"}
	e := NewExtractor(Config{TesseractLang: "eng+ind", PSM: 6}, r, nil)
	img := testPNG(t)

	text, err := e.ExtractText(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "KANTIN SEHAT\n\nPOS-080425-110 Rp 20.000\n\nTerima kasih", text)
	assert.Equal(t, "tesseract", r.name)
	assert.Equal(t, []string{"stdout", "-l", "eng+ind", "--psm", "6"}, r.args[1:])
	assert.Equal(t, img, r.seen)
	_, statErr := os.Stat(r.args[0])
	assert.True(t, os.IsNotExist(statErr), "temp image must be removed")
}

func TestExtractTextErrors(t *testing.T) {
	img := testPNG(t)

	_, err := NewExtractor(Config{}, &fakeRunner{}, nil).ExtractText(context.Background(), []byte("not an image"))
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = NewExtractor(Config{}, &fakeRunner{}, nil).ExtractText(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = NewExtractor(Config{}, &fakeRunner{err: errors.New("exit 1")}, nil).ExtractText(context.Background(), img)
	require.ErrorIs(t, err, ErrProcessingFailed)

	_, err = NewExtractor(Config{}, &fakeRunner{stdout: " \n\n ---- \n"}, nil).ExtractText(context.Background(), img)
	require.ErrorIs(t, err, ErrNoTextFound)
}

func TestNormalizeKeepsOrderNumbers(t *testing.T) {
	assert.Equal(t, "POS-080425-010", Normalize("POS-080425-010"))
	assert.Equal(t, "a\nb", Normalize("a   \n  b"))
	assert.Equal(t, "", Normalize(""))
}

func TestHeuristicConfidence(t *testing.T) {
	low := HeuristicConfidence("hello")
	high := HeuristicConfidence("POS-080425-110 08/04/25 Total Rp 20.000")
	assert.Less(t, low, high)
	assert.LessOrEqual(t, high, float32(1.0))
}

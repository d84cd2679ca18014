package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/ocr"
)

// fakeEngine returns canned results for every page.
type fakeEngine struct {
	name  string
	text  string
	conf  float64
	err   error
	calls int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Recognize(_ context.Context, _ ocr.Page) (ocr.Result, error) {
	f.calls++
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	return ocr.Result{Text: f.text, Confidence: f.conf}, nil
}

func testConfig() Config {
	return Config{DPI: 300, MaxPages: 4, MinTextLength: 10, MinConfidence: 0.55}
}

func imageDoc() Document {
	return Document{ID: "doc-1", Name: "voucher.png", MediaType: MediaTypeImage, Data: []byte("png-bytes")}
}

func TestExtractor_PrimaryAccepted(t *testing.T) {
	primary := &fakeEngine{name: "tesseract", text: "Voucher No: 12357-ROS8227 Units of Service 6.0@$30", conf: 0.92}
	fallback := &fakeEngine{name: "vision", text: "should not be used", conf: 0.9}
	ex := NewExtractor(primary, fallback, testConfig(), zap.NewNop())

	res, err := ex.Extract(context.Background(), imageDoc())
	require.NoError(t, err)
	assert.Equal(t, "tesseract", res.Engine)
	assert.Equal(t, primary.text, res.Text)
	assert.Equal(t, 1, res.Pages)
	assert.Zero(t, fallback.calls)
}

func TestExtractor_FallsBackOnLowConfidence(t *testing.T) {
	primary := &fakeEngine{name: "tesseract", text: "garbled text from a bad scan", conf: 0.21}
	fallback := &fakeEngine{name: "vision", text: "Voucher No: 12357-ROS8227", conf: 0.9}
	ex := NewExtractor(primary, fallback, testConfig(), zap.NewNop())

	res, err := ex.Extract(context.Background(), imageDoc())
	require.NoError(t, err)
	assert.Equal(t, "vision", res.Engine)
	assert.Equal(t, fallback.text, res.Text)
	assert.Equal(t, 1, fallback.calls)
}

func TestExtractor_FallsBackOnShortText(t *testing.T) {
	primary := &fakeEngine{name: "tesseract", text: "x", conf: 0.99}
	fallback := &fakeEngine{name: "vision", text: "Voucher No: 12357-ROS8227", conf: 0.9}
	ex := NewExtractor(primary, fallback, testConfig(), zap.NewNop())

	res, err := ex.Extract(context.Background(), imageDoc())
	require.NoError(t, err)
	assert.Equal(t, "vision", res.Engine)
}

func TestExtractor_FallsBackOnPrimaryError(t *testing.T) {
	primary := &fakeEngine{name: "tesseract", err: errors.New("tesseract not installed")}
	fallback := &fakeEngine{name: "vision", text: "Voucher No: 12357-ROS8227", conf: 0.9}
	ex := NewExtractor(primary, fallback, testConfig(), zap.NewNop())

	res, err := ex.Extract(context.Background(), imageDoc())
	require.NoError(t, err)
	assert.Equal(t, "vision", res.Engine)
}

func TestExtractor_BothEnginesEmpty(t *testing.T) {
	primary := &fakeEngine{name: "tesseract", text: "", conf: 0}
	fallback := &fakeEngine{name: "vision", text: "", conf: 0.9}
	ex := NewExtractor(primary, fallback, testConfig(), zap.NewNop())

	_, err := ex.Extract(context.Background(), imageDoc())
	require.Error(t, err)

	var exErr *ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, "doc-1", exErr.DocumentID)
}

func TestExtractor_BothEnginesFail(t *testing.T) {
	primary := &fakeEngine{name: "tesseract", err: errors.New("boom")}
	fallback := &fakeEngine{name: "vision", err: errors.New("quota exceeded")}
	ex := NewExtractor(primary, fallback, testConfig(), zap.NewNop())

	_, err := ex.Extract(context.Background(), imageDoc())
	var exErr *ExtractionError
	require.True(t, errors.As(err, &exErr))
}

func TestExtractor_KeepsNonEmptyPrimaryWhenFallbackFails(t *testing.T) {
	primary := &fakeEngine{name: "tesseract", text: "partial but usable text from doc", conf: 0.3}
	fallback := &fakeEngine{name: "vision", err: errors.New("quota exceeded")}
	ex := NewExtractor(primary, fallback, testConfig(), zap.NewNop())

	res, err := ex.Extract(context.Background(), imageDoc())
	require.NoError(t, err)
	assert.Equal(t, "tesseract", res.Engine)
	assert.Equal(t, primary.text, res.Text)
}

package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEinoPDFExtractorRejectsNonPDF(t *testing.T) {
	e, err := NewEinoPDFExtractor(context.Background(), WithEinoLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, _, err = e.ExtractText(context.Background(), []byte("hello"), "cv.docx")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestEinoPDFExtractorInvalidPDF(t *testing.T) {
	e, err := NewEinoPDFExtractor(context.Background(), WithEinoLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, _, err = e.ExtractText(context.Background(), []byte("not a pdf"), "cv.pdf")
	assert.Error(t, err)
}

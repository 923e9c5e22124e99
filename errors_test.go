package ppeprep

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestItemError(t *testing.T) {
	err := newItemError(DegenerateGeometryError, "labels/a.txt", 2,
		errors.Wrap(ErrDegenerateGeometry, "anchor"))
	assert.Equal(t, `degenerate-geometry error in "labels/a.txt":2: anchor: degenerate box after clipping`,
		err.Error())
	assert.True(t, errors.Is(err, ErrDegenerateGeometry))
	assert.False(t, IsConfigurationError(err))

	err = newItemError(IOError, "images/b.png", 0, errors.New("no label file"))
	assert.Equal(t, `io error in "images/b.png": no label file`, err.Error())
}

func TestConfigError(t *testing.T) {
	err := configError(ErrMissingVocabulary, "crop pass")
	assert.Equal(t, "configuration error: crop pass: missing class vocabulary", err.Error())
	assert.True(t, IsConfigurationError(err))
	assert.True(t, IsConfigurationError(errors.Wrap(err, "outer")))
	assert.True(t, errors.Is(err, ErrMissingVocabulary))

	assert.False(t, IsConfigurationError(nil))
	assert.False(t, IsConfigurationError(errors.New("plain")))
	assert.Equal(t, "ErrorKind(9)", ErrorKind(9).String())
}

package ppeprep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testVocabulary(t *testing.T) Vocabulary {
	t.Helper()
	// The anchor is in the middle so that IDs above and below it are covered.
	vocab, err := NewVocabulary([]string{"helmet", "vest", "person", "gloves", "boots"}, 2)
	require.NoError(t, err)
	return vocab
}

func TestNewVocabulary(t *testing.T) {
	vocab := testVocabulary(t)
	assert.Equal(t, 5, vocab.Len())
	assert.Equal(t, 2, vocab.Anchor())
	assert.True(t, vocab.IsAnchor(2))
	assert.False(t, vocab.IsAnchor(0))
	assert.Equal(t, "gloves", vocab.Name(3))
	assert.Equal(t, "", vocab.Name(5))
	assert.Equal(t, "", vocab.Name(-1))

	id, ok := vocab.ID("vest")
	assert.True(t, ok)
	assert.Equal(t, 1, id)
	_, ok = vocab.ID("mask")
	assert.False(t, ok)

	names := vocab.Names()
	names[0] = "changed"
	assert.Equal(t, "helmet", vocab.Name(0), "Names must return a copy")
}

func TestNewVocabularyErrors(t *testing.T) {
	_, err := NewVocabulary(nil, 0)
	assert.True(t, errors.Is(err, ErrMissingVocabulary))

	_, err = NewVocabulary([]string{"person"}, 1)
	assert.Error(t, err)

	_, err = NewVocabulary([]string{"person", "helmet", "person"}, 0)
	assert.Error(t, err)
}

func TestDependentID(t *testing.T) {
	vocab := testVocabulary(t)
	tests := []struct {
		id, want int
	}{
		{0, 0},
		{1, 1},
		{3, 2},
		{4, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vocab.DependentID(tt.id), "id %d", tt.id)
	}

	dependents := vocab.DependentNames()
	assert.Equal(t, []string{"helmet", "vest", "gloves", "boots"}, dependents)
	// A dependent ID indexes the dependent-only vocabulary.
	for id := 0; id < vocab.Len(); id++ {
		if !vocab.IsAnchor(id) {
			assert.Equal(t, vocab.Name(id), dependents[vocab.DependentID(id)])
		}
	}
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "classes.txt")
	writeFile(t, path, "person\r\nhelmet\n\nvest\n")
	vocab, err := LoadVocabulary(path, DefaultAnchorClass)
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "helmet", "vest"}, vocab.Names())
	assert.Equal(t, 0, vocab.Anchor())

	vocab, err = LoadVocabulary(path, "vest")
	require.NoError(t, err)
	assert.Equal(t, 2, vocab.Anchor())

	_, err = LoadVocabulary(path, "worker")
	assert.Error(t, err)

	_, err = LoadVocabulary(filepath.Join(dir, "missing.txt"), DefaultAnchorClass)
	assert.True(t, errors.Is(err, ErrMissingVocabulary), "%v", err)

	empty := filepath.Join(dir, "empty.txt")
	writeFile(t, empty, "\n\n")
	_, err = LoadVocabulary(empty, DefaultAnchorClass)
	assert.True(t, errors.Is(err, ErrMissingVocabulary), "%v", err)
}

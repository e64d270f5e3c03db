package rag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/docqa/types"
)

func newTestIngestor(t *testing.T) *Ingestor {
	t.Helper()
	chunker := newTestChunker(t, DefaultChunkingConfig())
	return NewIngestor(chunker, nil, nil)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "manual", DocumentID("/data/docs/manual.txt"))
	assert.Equal(t, "notes", DocumentID("notes.md"))
	assert.Equal(t, "plain", DocumentID("plain"))
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "guide.txt", "first paragraph\n\nsecond paragraph")

	in := newTestIngestor(t)
	fragments, err := in.IngestFile(path)
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, "guide", fragments[0].DocumentID)
	assert.Equal(t, path+"#para0:chunk0", fragments[0].Source)
	assert.Nil(t, fragments[0].Embedding)
}

func TestIngestFileMissing(t *testing.T) {
	in := newTestIngestor(t)
	_, err := in.IngestFile(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrIngestion))
}

func TestIngestFileRejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binary.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x81}, 0o644))

	in := newTestIngestor(t)
	_, err := in.IngestFile(path)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrIngestion))
}

func TestIngestDirSkipsFailedDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "readable paragraph")
	writeFile(t, dir, "other.md", "markdown paragraph")
	writeFile(t, dir, "ignored.json", "{}")
	badPath := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(badPath, []byte{0xff, 0xfe}, 0o644))

	in := newTestIngestor(t)
	fragments, err := in.IngestDir(dir)
	require.NoError(t, err)

	docs := map[string]bool{}
	for _, f := range fragments {
		docs[f.DocumentID] = true
	}
	assert.Equal(t, map[string]bool{"good": true, "other": true}, docs)
}

func TestIngestDirMissing(t *testing.T) {
	in := newTestIngestor(t)
	_, err := in.IngestDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrIngestion))
}

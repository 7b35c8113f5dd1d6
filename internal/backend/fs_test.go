package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqscout/seqscout/internal/genomics"
)

func writeTestTree(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	return root
}

func TestFilesystemBackend_ListsRecognizedFilesOnly(t *testing.T) {
	root := writeTestTree(t,
		"sample.bam",
		"sample.bam.bai",
		"sub/reads_R1.fastq.gz",
		"notes.txt",
	)
	b, err := NewFilesystemBackend("fs", root, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	got, err := b.Search(context.Background(), genomics.Query{})

	require.NoError(t, err)
	require.Len(t, got, 3, "unrecognized extensions are skipped")
	for _, f := range got {
		assert.NotEqual(t, genomics.FileTypeUnknown, f.FileType)
		assert.Equal(t, "fs", f.SourceSystem)
	}
}

func TestFilesystemBackend_FiltersByTypeAndTerms(t *testing.T) {
	root := writeTestTree(t, "tumor.bam", "normal.bam", "tumor.vcf")
	b, err := NewFilesystemBackend("fs", root, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	got, err := b.Search(context.Background(), genomics.Query{
		FileType: genomics.FileTypeBAM,
		Terms:    []string{"tumor"},
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(root, "tumor.bam"), got[0].Path)
}

func TestFilesystemBackend_SearchPaginated(t *testing.T) {
	root := writeTestTree(t, "a.bam", "b.bam", "c.bam", "d.bam", "e.bam")
	b, err := NewFilesystemBackend("fs", root, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	first, err := b.SearchPaginated(context.Background(), genomics.Query{},
		genomics.BackendPageRequest{BufferSize: 3})
	require.NoError(t, err)
	assert.Len(t, first.Results, 3)
	assert.True(t, first.HasMoreResults)
	require.NotEmpty(t, first.NextContinuationToken)

	second, err := b.SearchPaginated(context.Background(), genomics.Query{},
		genomics.BackendPageRequest{BufferSize: 3, ContinuationToken: first.NextContinuationToken})
	require.NoError(t, err)
	assert.Len(t, second.Results, 2)
	assert.False(t, second.HasMoreResults)

	// Paths are sorted, so the two pages partition the snapshot.
	assert.NotEqual(t, first.Results[len(first.Results)-1].Path, second.Results[0].Path)
}

func TestFilesystemBackend_WatchSeesNestedChanges(t *testing.T) {
	root := writeTestTree(t, "run1/sample.bam")
	b, err := NewFilesystemBackend("fs", root, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	// Given a warm snapshot
	got, err := b.Search(context.Background(), genomics.Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	count := func() int {
		got, err := b.Search(context.Background(), genomics.Query{})
		require.NoError(t, err)
		return len(got)
	}

	// When a file appears in an existing subdirectory
	require.NoError(t, os.WriteFile(filepath.Join(root, "run1", "sample.vcf"), []byte("x"), 0o644))

	// Then the next searches pick it up
	require.Eventually(t, func() bool { return count() == 2 },
		5*time.Second, 10*time.Millisecond, "nested create should invalidate the snapshot")

	// When an entirely new subdirectory gains a file
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "run2", "other.bam"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return count() == 3 },
		5*time.Second, 10*time.Millisecond, "new directories should be watched too")
}

func TestFilesystemBackend_SearchPaginated_InvalidToken(t *testing.T) {
	root := writeTestTree(t, "a.bam")
	b, err := NewFilesystemBackend("fs", root, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.SearchPaginated(context.Background(), genomics.Query{},
		genomics.BackendPageRequest{BufferSize: 3, ContinuationToken: "bogus"})

	require.Error(t, err)
}

package backend

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/seqscout/seqscout/internal/genomics"
)

// BleveBackend searches a bleve full-text index of file metadata.
// Paginated searches use the index's from/size windowing with the from
// offset carried in the continuation token.
type BleveBackend struct {
	index bleve.Index
	name  string
	lock  *storeLock
}

// bleveDocument is the indexed shape of a GenomicsFile. Every field is
// stored so hits can be rehydrated without a side store.
type bleveDocument struct {
	Path         string            `json:"path"`
	FileType     string            `json:"file_type"`
	SizeBytes    int64             `json:"size_bytes"`
	StorageClass string            `json:"storage_class"`
	LastModified string            `json:"last_modified"`
	SourceSystem string            `json:"source_system"`
	Tags         map[string]string `json:"tags"`
}

func bleveIndexMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Store = true
	doc.AddFieldMappingsAt("path", text)
	doc.AddFieldMappingsAt("tags", text)

	// file_type is an exact-match filter, not analyzed text.
	kw := bleve.NewTextFieldMapping()
	kw.Store = true
	kw.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("file_type", kw)
	doc.AddFieldMappingsAt("storage_class", kw)
	doc.AddFieldMappingsAt("source_system", kw)
	doc.AddFieldMappingsAt("last_modified", kw)

	num := bleve.NewNumericFieldMapping()
	num.Store = true
	doc.AddFieldMappingsAt("size_bytes", num)

	m.DefaultMapping = doc
	return m, nil
}

// NewBleveBackend opens (or creates) a metadata index at path. An empty
// path creates an in-memory index for testing.
func NewBleveBackend(name, path string) (*BleveBackend, error) {
	mapping, err := bleveIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	var lock *storeLock
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		if lock, err = acquireStoreLock(path); err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			idx, err = bleve.New(path, mapping)
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("open metadata index: %w", err)
	}
	if name == "" {
		name = "bleve"
	}
	return &BleveBackend{index: idx, name: name, lock: lock}, nil
}

// Name implements the backend interface.
func (b *BleveBackend) Name() string { return b.name }

// Close releases the index and the store lock.
func (b *BleveBackend) Close() error {
	err := b.index.Close()
	if lerr := b.lock.release(); err == nil {
		err = lerr
	}
	return err
}

// Index adds files to the metadata index, keyed by path.
func (b *BleveBackend) Index(ctx context.Context, files ...*genomics.GenomicsFile) error {
	batch := b.index.NewBatch()
	for _, f := range files {
		doc := bleveDocument{
			Path:         f.Path,
			FileType:     string(f.FileType),
			SizeBytes:    f.SizeBytes,
			StorageClass: f.StorageClass,
			LastModified: f.LastModified.UTC().Format(time.RFC3339),
			SourceSystem: f.SourceSystem,
			Tags:         f.Tags,
		}
		if err := batch.Index(f.Path, doc); err != nil {
			return fmt.Errorf("index %s: %w", f.Path, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("apply index batch: %w", err)
	}
	return nil
}

// buildQuery renders the type filter and terms into a bleve query.
// Each term must match the path or a tag; terms are conjunctive.
func buildQuery(q genomics.Query) query.Query {
	var conjuncts []query.Query

	if q.FileType != "" && q.FileType != genomics.FileTypeUnknown {
		tq := bleve.NewTermQuery(string(q.FileType))
		tq.SetField("file_type")
		conjuncts = append(conjuncts, tq)
	}
	for _, term := range q.Terms {
		if term == "" {
			continue
		}
		path := bleve.NewMatchQuery(term)
		path.SetField("path")
		wild := bleve.NewWildcardQuery("*" + term + "*")
		wild.SetField("path")
		tags := bleve.NewMatchQuery(term)
		tags.SetField("tags")
		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(path, wild, tags))
	}
	if len(conjuncts) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

// Search returns every indexed file matching the query.
func (b *BleveBackend) Search(ctx context.Context, q genomics.Query) ([]*genomics.GenomicsFile, error) {
	page, err := b.searchWindow(ctx, q, 0, maxBleveWindow)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

// maxBleveWindow caps a single unpaginated search.
const maxBleveWindow = 10000

// SearchPaginated returns one from/size window of matching files.
func (b *BleveBackend) SearchPaginated(ctx context.Context, q genomics.Query, page genomics.BackendPageRequest) (*genomics.BackendPage, error) {
	from := 0
	if page.ContinuationToken != "" {
		v, err := strconv.Atoi(page.ContinuationToken)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid index continuation token %q", page.ContinuationToken)
		}
		from = v
	}
	size := page.BufferSize
	if size <= 0 {
		size = 100
	}
	return b.searchWindow(ctx, q, from, size)
}

func (b *BleveBackend) searchWindow(ctx context.Context, q genomics.Query, from, size int) (*genomics.BackendPage, error) {
	req := bleve.NewSearchRequestOptions(buildQuery(q), size, from, false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"path"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	// Scanned counts this window's contribution only; the caller sums
	// windows across pages.
	out := &genomics.BackendPage{
		TotalScanned: len(res.Hits),
	}
	for _, hit := range res.Hits {
		out.Results = append(out.Results, hitToFile(hit.ID, hit.Fields))
	}
	if int(res.Total) > from+len(res.Hits) {
		out.HasMoreResults = true
		out.NextContinuationToken = strconv.Itoa(from + len(res.Hits))
	}
	return out, nil
}

// hitToFile rehydrates a GenomicsFile from a hit's stored fields.
func hitToFile(id string, fields map[string]any) *genomics.GenomicsFile {
	f := &genomics.GenomicsFile{Path: id, FileType: genomics.FileTypeUnknown}
	if v, ok := fields["file_type"].(string); ok && v != "" {
		f.FileType = genomics.FileType(v)
	}
	if v, ok := fields["size_bytes"].(float64); ok {
		f.SizeBytes = int64(v)
	}
	if v, ok := fields["storage_class"].(string); ok {
		f.StorageClass = v
	}
	if v, ok := fields["source_system"].(string); ok {
		f.SourceSystem = v
	}
	if v, ok := fields["last_modified"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.LastModified = t
		}
	}
	// Tag fields are stored flattened as tags.<key>.
	for k, v := range fields {
		const prefix = "tags."
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			if sv, ok := v.(string); ok {
				if f.Tags == nil {
					f.Tags = make(map[string]string)
				}
				f.Tags[k[len(prefix):]] = sv
			}
		}
	}
	return f
}

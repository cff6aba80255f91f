package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/blog/internal/models"
)

var ErrUnavailable = errors.New("search index not configured")

const defaultSize = 50

var postMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":        map[string]any{"type": "long"},
			"author":    map[string]any{"type": "keyword"},
			"title":     map[string]any{"type": "text"},
			"body":      map[string]any{"type": "text"},
			"createdAt": map[string]any{"type": "date"},
			"updatedAt": map[string]any{"type": "date"},
		},
	},
}

// Index keeps a searchable copy of posts. A nil *Index is valid: writes are
// no-ops and Search reports ErrUnavailable.
type Index struct {
	es   *elasticsearch.Client
	name string
}

func New(es *elasticsearch.Client, name string) *Index {
	return &Index{es: es, name: name}
}

func (i *Index) Enabled() bool {
	return i != nil && i.es != nil && i.name != ""
}

// Ensure creates the index with the post mapping when it does not exist yet.
func (i *Index) Ensure(ctx context.Context) error {
	if !i.Enabled() {
		return nil
	}

	res, err := i.es.Indices.Exists([]string{i.name}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es: exists %s: %w", i.name, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := encode(postMapping)
	if err != nil {
		return err
	}
	return check(i.es.Indices.Create(i.name,
		i.es.Indices.Create.WithContext(ctx),
		i.es.Indices.Create.WithBody(body),
	))
}

func (i *Index) IndexPost(ctx context.Context, p models.Post) error {
	if !i.Enabled() {
		return nil
	}

	body, err := encode(p)
	if err != nil {
		return err
	}
	return check(i.es.Index(i.name, body,
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(docID(p.ID)),
	))
}

func (i *Index) DeletePost(ctx context.Context, id uint) error {
	if !i.Enabled() {
		return nil
	}
	return check(i.es.Delete(i.name, docID(id), i.es.Delete.WithContext(ctx)))
}

func (i *Index) DeleteByAuthor(ctx context.Context, author string) error {
	if !i.Enabled() {
		return nil
	}

	body, err := encode(map[string]any{
		"query": map[string]any{"term": map[string]any{"author": author}},
	})
	if err != nil {
		return err
	}
	return check(i.es.DeleteByQuery([]string{i.name}, body, i.es.DeleteByQuery.WithContext(ctx)))
}

// RenameAuthor re-attributes indexed posts the same way the store does on a
// username change.
func (i *Index) RenameAuthor(ctx context.Context, oldAuthor, newAuthor string) error {
	if !i.Enabled() {
		return nil
	}

	body, err := encode(map[string]any{
		"query": map[string]any{"term": map[string]any{"author": oldAuthor}},
		"script": map[string]any{
			"source": "ctx._source.author = params.author",
			"lang":   "painless",
			"params": map[string]any{"author": newAuthor},
		},
	})
	if err != nil {
		return err
	}
	return check(i.es.UpdateByQuery([]string{i.name},
		i.es.UpdateByQuery.WithContext(ctx),
		i.es.UpdateByQuery.WithBody(body),
	))
}

func (i *Index) Search(ctx context.Context, query string) ([]models.Post, error) {
	if !i.Enabled() {
		return nil, ErrUnavailable
	}

	body, err := encode(map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "body"},
				"fuzziness": "AUTO",
			},
		},
		"size": defaultSize,
	})
	if err != nil {
		return nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.name),
		i.es.Search.WithBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("es: search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res)
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source models.Post `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("es: decode search: %w", err)
	}

	posts := make([]models.Post, len(r.Hits.Hits))
	for n, hit := range r.Hits.Hits {
		posts[n] = hit.Source
	}
	return posts, nil
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func encode(v any) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("es: encode body: %w", err)
	}
	return &buf, nil
}

// check drains res and converts error statuses. A 404 on delete is fine.
func check(res *esapi.Response, err error) error {
	if err != nil {
		return fmt.Errorf("es: request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError(res)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("es: %s: %s", res.Status(), bytes.TrimSpace(body))
}

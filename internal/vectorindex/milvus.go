package vectorindex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/lecture-chat/cli/internal/model"
)

const (
	fieldChunkID   = "chunk_id"
	fieldVideoID   = "video_id"
	fieldIndex     = "chunk_index"
	fieldStart     = "start_time"
	fieldEnd       = "end_time"
	fieldText      = "text"
	fieldWordCount = "word_count"
	fieldVector    = "vector"

	maxTextLength = 65535

	// extra candidates fetched so ties at the k-th score can be broken by index
	tieSlack = 8
)

// MilvusClient is the subset of the Milvus SDK client used by the backend
type MilvusClient interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Insert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Delete(ctx context.Context, collName string, partitionName string, expr string) error
	Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Close() error
}

// MilvusConfig holds connection settings
type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	APIKey     string
	Collection string
	Dimension  int
}

// Milvus stores chunk vectors in a Milvus collection with an HNSW cosine index
type Milvus struct {
	mc   MilvusClient
	coll string
	dim  int
}

// DialMilvus connects to Milvus and prepares the collection
func DialMilvus(ctx context.Context, cfg MilvusConfig) (*Milvus, error) {
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	m, err := NewMilvus(ctx, mc, cfg.Collection, cfg.Dimension)
	if err != nil {
		mc.Close()
		return nil, err
	}
	return m, nil
}

// NewMilvus wraps a connected client, creating and loading the collection if needed
func NewMilvus(ctx context.Context, mc MilvusClient, collection string, dim int) (*Milvus, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("milvus backend needs a positive vector dimension, got %d", dim)
	}
	if collection == "" {
		collection = "lecture_chunks"
	}
	m := &Milvus{mc: mc, coll: collection, dim: dim}
	if err := m.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Milvus) ensureCollection(ctx context.Context) error {
	has, err := m.mc.HasCollection(ctx, m.coll)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		schema := entity.NewSchema().
			WithName(m.coll).
			WithDescription("lecture transcript chunks").
			WithField(entity.NewField().WithName(fieldChunkID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldVideoID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(fieldIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldStart).WithDataType(entity.FieldTypeDouble)).
			WithField(entity.NewField().WithName(fieldEnd).WithDataType(entity.FieldTypeDouble)).
			WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLength)).
			WithField(entity.NewField().WithName(fieldWordCount).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(m.dim)))

		if err := m.mc.CreateCollection(ctx, schema, 2); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := m.mc.CreateIndex(ctx, m.coll, fieldVector, idx, false, client.WithIndexName("idx_vector")); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := m.mc.LoadCollection(ctx, m.coll, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func videoFilter(videoID string) string {
	return fieldVideoID + " == " + strconv.Quote(videoID)
}

// Replace deletes the video's rows and inserts the new set. The Index write
// lock keeps in-process readers from observing the gap between the two.
func (m *Milvus) Replace(ctx context.Context, videoID string, chunks []model.Chunk) error {
	if err := m.Delete(ctx, videoID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	n := len(chunks)
	var (
		ids     = make([]string, n)
		videos  = make([]string, n)
		indexes = make([]int64, n)
		starts  = make([]float64, n)
		ends    = make([]float64, n)
		texts   = make([]string, n)
		words   = make([]int64, n)
		vectors = make([][]float32, n)
	)
	for i, c := range chunks {
		if len(c.Embedding) != m.dim {
			return fmt.Errorf("chunk %d has dimension %d, collection expects %d", c.Index, len(c.Embedding), m.dim)
		}
		text := c.Text
		if len(text) > maxTextLength {
			return fmt.Errorf("chunk %d text is %d bytes, collection allows %d", c.Index, len(text), maxTextLength)
		}
		ids[i] = c.ID
		videos[i] = videoID
		indexes[i] = int64(c.Index)
		starts[i] = c.Start
		ends[i] = c.End
		texts[i] = text
		words[i] = int64(c.WordCount)
		vectors[i] = c.Embedding
	}

	_, err := m.mc.Insert(ctx, m.coll, "",
		entity.NewColumnVarChar(fieldChunkID, ids),
		entity.NewColumnVarChar(fieldVideoID, videos),
		entity.NewColumnInt64(fieldIndex, indexes),
		entity.NewColumnDouble(fieldStart, starts),
		entity.NewColumnDouble(fieldEnd, ends),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnInt64(fieldWordCount, words),
		entity.NewColumnFloatVector(fieldVector, m.dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	if err := m.mc.Flush(ctx, m.coll, false); err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	return nil
}

// Search runs an HNSW cosine search restricted to the video
func (m *Milvus) Search(ctx context.Context, videoID string, vector []float32, k int) ([]Hit, error) {
	if len(vector) != m.dim {
		return nil, fmt.Errorf("query has dimension %d, collection expects %d", len(vector), m.dim)
	}
	ef := 2 * (k + tieSlack)
	if ef < 64 {
		ef = 64
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := m.mc.Search(ctx, m.coll, []string{}, videoFilter(videoID),
		[]string{fieldChunkID, fieldIndex, fieldStart, fieldEnd, fieldText, fieldWordCount},
		[]entity.Vector{entity.FloatVector(vector)}, fieldVector, entity.COSINE, k+tieSlack, sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	var hits []Hit
	for _, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("milvus search failed: %w", r.Err)
		}
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			c := model.Chunk{VideoID: videoID}
			if col, ok := cols[fieldChunkID].(*entity.ColumnVarChar); ok && i < col.Len() {
				c.ID = col.Data()[i]
			}
			if col, ok := cols[fieldIndex].(*entity.ColumnInt64); ok && i < col.Len() {
				c.Index = int(col.Data()[i])
			}
			if col, ok := cols[fieldStart].(*entity.ColumnDouble); ok && i < col.Len() {
				c.Start = col.Data()[i]
			}
			if col, ok := cols[fieldEnd].(*entity.ColumnDouble); ok && i < col.Len() {
				c.End = col.Data()[i]
			}
			if col, ok := cols[fieldText].(*entity.ColumnVarChar); ok && i < col.Len() {
				c.Text = col.Data()[i]
			}
			if col, ok := cols[fieldWordCount].(*entity.ColumnInt64); ok && i < col.Len() {
				c.WordCount = int(col.Data()[i])
			}
			score := 0.0
			if i < len(r.Scores) {
				score = float64(r.Scores[i])
			}
			hits = append(hits, Hit{Chunk: c, Score: score})
		}
	}
	return hits, nil
}

// Delete removes the video's rows
func (m *Milvus) Delete(ctx context.Context, videoID string) error {
	if err := m.mc.Delete(ctx, m.coll, "", videoFilter(videoID)); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Ping checks that the collection is reachable
func (m *Milvus) Ping(ctx context.Context) error {
	_, err := m.mc.HasCollection(ctx, m.coll)
	return err
}

// Close releases the client connection
func (m *Milvus) Close() error {
	return m.mc.Close()
}

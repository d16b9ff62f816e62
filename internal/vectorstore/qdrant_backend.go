package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"zerorag/internal/zerotypes"
)

// QdrantBackend is the primary Backend: a thin wrapper around the
// official Qdrant client.
type QdrantBackend struct {
	client         *qdrant.Client
	collectionName string
}

// QdrantBackendConfig configures a new QdrantBackend.
type QdrantBackendConfig struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	CollectionName string
}

// NewQdrantBackend dials Qdrant and returns a Backend bound to the given
// collection. The collection itself is created lazily by EnsureCollection.
func NewQdrantBackend(cfg QdrantBackendConfig) (*QdrantBackend, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: creating qdrant client: %w", err)
	}
	return &QdrantBackend{client: client, collectionName: cfg.CollectionName}, nil
}

func (b *QdrantBackend) EnsureCollection(ctx context.Context, dim int) error {
	collections, err := b.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: listing collections: %w", err)
	}
	for _, name := range collections {
		if name == b.collectionName {
			return nil
		}
	}
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: creating collection %s: %w", b.collectionName, err)
	}
	return nil
}

func (b *QdrantBackend) Upsert(ctx context.Context, records []zerotypes.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, recordToPoint(r))
	}
	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upserting %d points: %w", len(points), err)
	}
	return nil
}

func (b *QdrantBackend) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		ids = append(ids, stringToPointID(id))
	}
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.collectionName,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: deleting %d points: %w", len(chunkIDs), err)
	}
	return nil
}

func (b *QdrantBackend) Search(ctx context.Context, query []float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([]zerotypes.SearchResult, error) {
	limit := uint64(topK)
	// Qdrant's cosine distance returns raw similarity in [-1,1]; the
	// caller's threshold is already normalized to [0,1], so convert it back
	// to Qdrant's native scale before filtering server-side.
	threshold := float32(scoreThreshold*2 - 1)
	scored, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.collectionName,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &threshold,
		Filter:         filterToQdrant(filter),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: querying: %w", err)
	}
	results := make([]zerotypes.SearchResult, 0, len(scored))
	for _, point := range scored {
		chunk, err := payloadToChunk(point.GetPayload())
		if err != nil {
			continue
		}
		results = append(results, zerotypes.SearchResult{
			ChunkID: chunk.ID,
			Score:   (float64(point.GetScore()) + 1) / 2,
			Payload: chunk,
		})
	}
	return results, nil
}

// BatchSearch runs Search once per query vector. Qdrant exposes a native
// batch query RPC; a future revision could call it directly instead of
// looping, but the loop keeps score normalization and payload decoding in
// one place.
func (b *QdrantBackend) BatchSearch(ctx context.Context, queries [][]float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([][]zerotypes.SearchResult, error) {
	out := make([][]zerotypes.SearchResult, len(queries))
	for i, q := range queries {
		r, err := b.Search(ctx, q, topK, scoreThreshold, filter)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (b *QdrantBackend) Count(ctx context.Context) (int64, error) {
	count, err := b.client.Count(ctx, &qdrant.CountPoints{CollectionName: b.collectionName})
	if err != nil {
		return 0, fmt.Errorf("vectorstore: counting points: %w", err)
	}
	return int64(count), nil
}

// filterToQdrant translates a SearchFilter into a server-side Qdrant
// filter; "source_document_id" matches the top-level payload field, every
// other key matches its "meta_"-prefixed counterpart written by
// recordToPoint.
func filterToQdrant(filter zerotypes.SearchFilter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		field := "meta_" + key
		if key == "source_document_id" {
			field = "source_document_id"
		}
		conditions = append(conditions, qdrant.NewMatch(field, value))
	}
	return &qdrant.Filter{Must: conditions}
}

func (b *QdrantBackend) Stats(ctx context.Context) (BackendStats, error) {
	info, err := b.client.GetCollectionInfo(ctx, b.collectionName)
	if err != nil {
		return BackendStats{}, fmt.Errorf("vectorstore: collection info: %w", err)
	}
	return BackendStats{
		TotalRecords: int64(info.GetPointsCount()),
		Detail:       map[string]interface{}{"collection": b.collectionName},
	}, nil
}

func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

func recordToPoint(r zerotypes.VectorRecord) *qdrant.PointStruct {
	payload := map[string]*qdrant.Value{
		"id":                 qdrant.NewValueString(r.Payload.ID),
		"source_document_id": qdrant.NewValueString(r.Payload.SourceDocumentID),
		"chunk_index":        qdrant.NewValueInt(int64(r.Payload.ChunkIndex)),
		"text":               qdrant.NewValueString(r.Payload.Text),
		"start_char":         qdrant.NewValueInt(int64(r.Payload.StartChar)),
		"end_char":           qdrant.NewValueInt(int64(r.Payload.EndChar)),
		"content_preview":    qdrant.NewValueString(r.Payload.ContentPreview),
	}
	for k, v := range r.Payload.Metadata {
		payload["meta_"+k] = qdrant.NewValueString(v)
	}
	return &qdrant.PointStruct{
		Id:      stringToPointID(r.ChunkID),
		Vectors: qdrant.NewVectors(r.Embedding...),
		Payload: payload,
	}
}

// stringToPointID encodes an opaque chunk ID as a Qdrant UUID-slot point
// ID; Qdrant does not validate the string's UUID-ness for this field.
func stringToPointID(s string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: s}}
}

func payloadToChunk(payload map[string]*qdrant.Value) (zerotypes.Chunk, error) {
	get := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	getInt := func(key string) int {
		if v, ok := payload[key]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}
	id := get("id")
	if id == "" {
		return zerotypes.Chunk{}, fmt.Errorf("vectorstore: payload missing id")
	}
	var metadata map[string]string
	for key, v := range payload {
		const prefix = "meta_"
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[key[len(prefix):]] = v.GetStringValue()
		}
	}
	return zerotypes.Chunk{
		ID:               id,
		SourceDocumentID: get("source_document_id"),
		ChunkIndex:       getInt("chunk_index"),
		Text:             get("text"),
		StartChar:        getInt("start_char"),
		EndChar:          getInt("end_char"),
		ContentPreview:   get("content_preview"),
		Metadata:         metadata,
	}, nil
}

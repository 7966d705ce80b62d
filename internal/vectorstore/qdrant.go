package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements Store using Qdrant.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334").
func NewQdrantStore(ctx context.Context, url, collection string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the collection if it does not exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	s.dimension = dimension

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert inserts or updates records.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, record := range records {
		payload := map[string]*qdrant.Value{
			"text": qdrant.NewValueString(record.Text),
			"id":   qdrant.NewValueString(record.ID),
		}
		for k, v := range record.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}

		// Qdrant point ids must be UUIDs; logical ids carry a scheme prefix,
		// so the point id is a deterministic UUIDv5 of the logical id.
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(record.ID)).String()),
			Vectors: qdrant.NewVectors(record.Vector...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Query performs similarity search ordered by ascending cosine distance.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]QueryResult, error) {
	if k <= 0 {
		k = 5
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter := buildFilter(where); filter != nil {
		query.Filter = filter
	}

	response, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	results := make([]QueryResult, 0, len(response))
	for _, point := range response {
		// Qdrant returns cosine similarity; callers get cosine distance.
		results = append(results, QueryResult{
			ID:       recordID(point.Payload, point.Id),
			Document: payloadString(point.Payload, "text"),
			Metadata: payloadMetadata(point.Payload),
			Distance: 1 - point.Score,
		})
	}
	return results, nil
}

// Find returns records whose metadata exactly matches the filter.
func (s *QdrantStore) Find(ctx context.Context, where map[string]string, limit int) ([]QueryResult, error) {
	if limit <= 0 {
		limit = 100
	}

	scroll := &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter := buildFilter(where); filter != nil {
		scroll.Filter = filter
	}

	points, err := s.client.Scroll(ctx, scroll)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	results := make([]QueryResult, 0, len(points))
	for _, point := range points {
		results = append(results, QueryResult{
			ID:       recordID(point.Payload, point.Id),
			Document: payloadString(point.Payload, "text"),
			Metadata: payloadMetadata(point.Payload),
		})
	}
	return results, nil
}

// ListPayloads returns stored metadata without vectors.
func (s *QdrantStore) ListPayloads(ctx context.Context, limit int) ([]map[string]string, error) {
	results, err := s.Find(ctx, nil, limit)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]string, len(results))
	for i, r := range results {
		payloads[i] = r.Metadata
	}
	return payloads, nil
}

// Count returns the number of stored records.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}

// CheckHealth probes the collection and reports its status.
func (s *QdrantStore) CheckHealth(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}
	if !exists {
		return fmt.Errorf("collection %s does not exist", s.collection)
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	if info.GetStatus() == qdrant.CollectionStatus_Red {
		return fmt.Errorf("collection %s index is in red status", s.collection)
	}
	return nil
}

// Repair attempts to restore an unhealthy collection: recreate a missing
// collection and resume indexing on an existing one.
func (s *QdrantStore) Repair(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}

	if !exists {
		dimension := s.dimension
		if dimension <= 0 {
			return fmt.Errorf("collection %s missing and dimension unknown", s.collection)
		}
		if err := s.EnsureCollection(ctx, dimension); err != nil {
			return fmt.Errorf("failed to recreate collection: %w", err)
		}
		return nil
	}

	// Force the optimizer to rebuild segments by resetting the indexing
	// threshold to its default.
	err = s.client.UpdateCollection(ctx, &qdrant.UpdateCollection{
		CollectionName: s.collection,
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(uint64(20000)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	return nil
}

// buildFilter converts exact-match metadata conditions to a qdrant filter.
func buildFilter(where map[string]string) *qdrant.Filter {
	if len(where) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(where))
	for k, v := range where {
		conditions = append(conditions, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conditions}
}

// recordID restores the logical record id, falling back to the point id for
// records written without one.
func recordID(payload map[string]*qdrant.Value, id *qdrant.PointId) string {
	if logical := payloadString(payload, "id"); logical != "" {
		return logical
	}
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadMetadata(payload map[string]*qdrant.Value) map[string]string {
	metadata := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == "text" || k == "id" {
			continue
		}
		metadata[k] = v.GetStringValue()
	}
	return metadata
}

// Ensure QdrantStore implements Store
var _ Store = (*QdrantStore)(nil)

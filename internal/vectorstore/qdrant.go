package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nidhogg/cogito/internal/embedding"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const contentPayloadKey = "content"

// QdrantStore persists documents in a Qdrant collection over gRPC, embedding
// content and queries through the configured embedding provider.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
	embedder    embedding.Provider
	logger      *zap.Logger
}

// NewQdrantStore dials the Qdrant gRPC endpoint and returns a ready store.
func NewQdrantStore(cfg Config, embedder embedding.Provider, logger *zap.Logger) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", cfg.QdrantHost, cfg.QdrantPort)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "knowledge"
	}
	return &QdrantStore{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  collection,
		embedder:    embedder,
		logger:      logger,
	}, nil
}

// Name reports the concrete store implementation.
func (s *QdrantStore) Name() string { return "qdrant" }

// Init ensures the collection exists with the embedder's dimension.
func (s *QdrantStore) Init(ctx context.Context) error {
	dim := uint64(s.embedder.Dimension())
	if dim == 0 {
		dim = 384
	}
	_, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err == nil {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dim,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

// AddDocuments embeds and upserts the documents into the collection.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d documents", len(vectors), len(docs))
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		payload := make(map[string]*pb.Value, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		payload[contentPayloadKey] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: d.Content}}

		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}}},
			Payload: payload,
		}
	}

	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// SimilaritySearch embeds the query and returns the top-K nearest documents.
func (s *QdrantStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vectors[0],
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collection, err)
	}

	docs := make([]Document, 0, len(resp.Result))
	for _, r := range resp.Result {
		doc := Document{
			ID:       r.Id.GetUuid(),
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		for key, v := range r.Payload {
			sv, ok := v.Kind.(*pb.Value_StringValue)
			if !ok {
				continue
			}
			if key == contentPayloadKey {
				doc.Content = sv.StringValue
			} else {
				doc.Metadata[key] = sv.StringValue
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DeleteDocuments removes points by ID.
func (s *QdrantStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}
	return nil
}

// Close tears down the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

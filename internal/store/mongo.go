package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ppiankov/claimcheck/internal/model"
)

const (
	catalogCollection  = "catalog_policies"
	uploadedCollection = "uploaded_policies"
	chunkCollection    = "policy_chunks"

	// vectorCandidateFactor widens the ANN candidate pool relative to topK
	vectorCandidateFactor = 10
)

type mongoFields struct {
	WaitingPeriodPreexistingYears *int     `bson:"waiting_period_preexisting_years,omitempty"`
	CoPayPercent                  *float64 `bson:"co_pay_percent,omitempty"`
	RoomRentLimit                 *string  `bson:"room_rent_limit,omitempty"`
	WaitingPeriodMaternityMonths  *int     `bson:"waiting_period_maternity_months,omitempty"`
	CoversMaternity               *bool    `bson:"covers_maternity,omitempty"`
	CoversOPD                     *bool    `bson:"covers_opd,omitempty"`
}

func (f mongoFields) model() model.ScoringFields {
	return model.ScoringFields{
		WaitingPeriodPreexistingYears: f.WaitingPeriodPreexistingYears,
		CoPayPercent:                  f.CoPayPercent,
		RoomRentLimit:                 f.RoomRentLimit,
		WaitingPeriodMaternityMonths:  f.WaitingPeriodMaternityMonths,
		CoversMaternity:               f.CoversMaternity,
		CoversOPD:                     f.CoversOPD,
	}
}

type catalogDoc struct {
	ID        string      `bson:"_id"`
	Name      string      `bson:"name"`
	Insurer   string      `bson:"insurer"`
	Fields    mongoFields `bson:",inline"`
	CreatedAt time.Time   `bson:"created_at"`
}

type uploadedDoc struct {
	ID         string      `bson:"_id"`
	UserLabel  string      `bson:"user_label"`
	Insurer    string      `bson:"insurer"`
	Status     string      `bson:"status"`
	Fields     mongoFields `bson:",inline"`
	UploadedAt time.Time   `bson:"uploaded_at"`
}

func (d uploadedDoc) model() model.UploadedPolicy {
	return model.UploadedPolicy{
		ID:            d.ID,
		UserLabel:     d.UserLabel,
		Insurer:       d.Insurer,
		Status:        model.UploadStatus(d.Status),
		UploadedAt:    d.UploadedAt,
		ScoringFields: d.Fields.model(),
	}
}

type chunkDoc struct {
	ID          string  `bson:"_id"`
	Content     string  `bson:"content"`
	SectionType string  `bson:"section_type"`
	PageNumber  int     `bson:"page_number"`
	Score       float64 `bson:"score"`
}

// MongoStore searches clauses with Atlas Vector Search and Atlas Search
type MongoStore struct {
	client      *mongo.Client
	db          *mongo.Database
	vectorIndex string
	textIndex   string
}

// OpenMongo connects and pings. Search indexes are managed in Atlas.
func OpenMongo(ctx context.Context, cfg model.StoreConfig) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	_, err = db.Collection(chunkCollection).Indexes().CreateMany(connectCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "policy_id", Value: 1}, {Key: "chunk_index", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &MongoStore{
		client:      client,
		db:          db,
		vectorIndex: cfg.VectorIndex,
		textIndex:   cfg.TextIndex,
	}, nil
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// GetCatalogPolicy returns the catalog record with the given ID
func (s *MongoStore) GetCatalogPolicy(ctx context.Context, id string) (*model.CatalogPolicy, error) {
	var doc catalogDoc
	err := s.db.Collection(catalogCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog policy: %w", err)
	}
	return &model.CatalogPolicy{ID: doc.ID, Name: doc.Name, Insurer: doc.Insurer, ScoringFields: doc.Fields.model()}, nil
}

// ListCatalogPolicies returns every catalog record in insertion order
func (s *MongoStore) ListCatalogPolicies(ctx context.Context) ([]model.CatalogPolicy, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.db.Collection(catalogCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list catalog policies: %w", err)
	}
	var docs []catalogDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode catalog policies: %w", err)
	}

	out := make([]model.CatalogPolicy, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.CatalogPolicy{ID: d.ID, Name: d.Name, Insurer: d.Insurer, ScoringFields: d.Fields.model()})
	}
	return out, nil
}

// GetUploadedPolicy returns the uploaded policy with the given ID
func (s *MongoStore) GetUploadedPolicy(ctx context.Context, id string) (*model.UploadedPolicy, error) {
	var doc uploadedDoc
	err := s.db.Collection(uploadedCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get uploaded policy: %w", err)
	}
	p := doc.model()
	return &p, nil
}

// FindUploadedDocumentForInsurer ranks indexed uploads with PickForInsurer
func (s *MongoStore) FindUploadedDocumentForInsurer(ctx context.Context, insurer string) (*model.UploadedPolicy, error) {
	if strings.TrimSpace(insurer) == "" {
		return nil, nil
	}

	filter := bson.M{
		"status":  string(model.UploadStatusIndexed),
		"insurer": bson.M{"$ne": ""},
	}
	cur, err := s.db.Collection(uploadedCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list indexed uploads: %w", err)
	}
	var docs []uploadedDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode uploaded policies: %w", err)
	}

	candidates := make([]model.UploadedPolicy, 0, len(docs))
	for _, d := range docs {
		candidates = append(candidates, d.model())
	}
	return PickForInsurer(insurer, candidates), nil
}

// SemanticSearch runs $vectorSearch filtered to the document
func (s *MongoStore) SemanticSearch(ctx context.Context, vec []float32, docID string, topK int) ([]model.EvidenceChunk, error) {
	return s.vectorSearch(ctx, vec, bson.M{"policy_id": docID}, topK)
}

// SectionSearch runs $vectorSearch filtered to the document and sections
func (s *MongoStore) SectionSearch(ctx context.Context, vec []float32, docID string, sections []model.SectionType, topK int) ([]model.EvidenceChunk, error) {
	if len(sections) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"policy_id":    docID,
		"section_type": bson.M{"$in": sectionStrings(sections)},
	}
	return s.vectorSearch(ctx, vec, filter, topK)
}

func (s *MongoStore) vectorSearch(ctx context.Context, vec []float32, filter bson.M, topK int) ([]model.EvidenceChunk, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.vectorIndex,
			"path":          "embedding",
			"queryVector":   vec,
			"numCandidates": topK * vectorCandidateFactor,
			"limit":         topK,
			"filter":        filter,
		}}},
		{{Key: "$project", Value: bson.M{
			"content":      1,
			"section_type": 1,
			"page_number":  1,
			"score":        bson.M{"$meta": "vectorSearchScore"},
		}}},
	}
	chunks, err := s.aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return chunks, nil
}

// KeywordSearch runs an Atlas Search text query restricted to the document
func (s *MongoStore) KeywordSearch(ctx context.Context, text, docID string, topK int) ([]model.EvidenceChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$search", Value: bson.M{
			"index": s.textIndex,
			"compound": bson.M{
				"must":   bson.A{bson.M{"text": bson.M{"query": text, "path": "content"}}},
				"filter": bson.A{bson.M{"equals": bson.M{"path": "policy_id", "value": docID}}},
			},
		}}},
		{{Key: "$limit", Value: topK}},
		{{Key: "$project", Value: bson.M{
			"content":      1,
			"section_type": 1,
			"page_number":  1,
			"score":        bson.M{"$meta": "searchScore"},
		}}},
	}
	chunks, err := s.aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return chunks, nil
}

func (s *MongoStore) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]model.EvidenceChunk, error) {
	cur, err := s.db.Collection(chunkCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var docs []chunkDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]model.EvidenceChunk, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.EvidenceChunk{
			ID:          d.ID,
			Content:     d.Content,
			SectionType: model.SectionType(d.SectionType),
			PageNumber:  d.PageNumber,
			Score:       d.Score,
		})
	}
	return out, nil
}

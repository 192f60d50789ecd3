// Package mongodb mirrors provisioned elections into MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/types"
)

const (
	electionsCollection = "elections"
	votersCollection    = "election_voters"
	connectTimeout      = 10 * time.Second
)

// electionDoc is the stored form of an election.
type electionDoc struct {
	ID          string         `bson:"_id"`
	Title       string         `bson:"title"`
	Description string         `bson:"description"`
	StartTime   time.Time      `bson:"startTime"`
	EndTime     time.Time      `bson:"endTime"`
	MerkleRoot  string         `bson:"merkleRoot"`
	TxHash      string         `bson:"txHash"`
	Candidates  []candidateDoc `bson:"candidates"`
	CreatedAt   time.Time      `bson:"createdAt"`
}

type candidateDoc struct {
	Name   string `bson:"name"`
	Party  string `bson:"party"`
	Wallet string `bson:"wallet"`
}

type voterDoc struct {
	ID         string `bson:"_id"`
	ElectionID string `bson:"electionId"`
	Position   int    `bson:"position"`
	Identifier string `bson:"identifier"`
	Wallet     string `bson:"wallet"`
}

// Mongo implements mirror.Mirror.
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
}

// New connects to uri and uses the given database.
func New(ctx context.Context, uri, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("cannot ping mongodb: %w", err)
	}
	m := &Mongo{client: client, database: client.Database(database)}
	if _, err := m.database.Collection(votersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "wallet", Value: 1}},
	}); err != nil {
		log.Warnw("could not create wallet index", "error", err.Error())
	}
	log.Infow("mongodb mirror ready", "database", database)
	return m, nil
}

// InsertElection upserts the election document, keeping an existing one.
func (m *Mongo) InsertElection(ctx context.Context, rec *types.ElectionRecord) error {
	doc := electionDoc{
		ID:          rec.ID.String(),
		Title:       rec.Title,
		Description: rec.Description,
		StartTime:   rec.StartTime,
		EndTime:     rec.EndTime,
		MerkleRoot:  rec.MerkleRoot.Hex(),
		TxHash:      rec.TxHash.Hex(),
		CreatedAt:   rec.CreatedAt,
	}
	for _, cand := range rec.Candidates {
		doc.Candidates = append(doc.Candidates, candidateDoc{
			Name:   cand.Name,
			Party:  cand.Party,
			Wallet: cand.Wallet.Hex(),
		})
	}
	_, err := m.database.Collection(electionsCollection).UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("insert election %s: %w", rec.ID, err)
	}
	return nil
}

// InsertVoterWallets upserts one document per voter in a single bulk write.
func (m *Mongo) InsertVoterWallets(ctx context.Context, electionID types.ElectionID, voters []types.VoterWallet) error {
	if len(voters) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(voters))
	for i, v := range voters {
		doc := voterDoc{
			ID:         fmt.Sprintf("%s/%d", electionID, i),
			ElectionID: electionID.String(),
			Position:   i,
			Identifier: v.Identifier,
			Wallet:     v.Wallet.Hex(),
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetUpdate(bson.M{"$setOnInsert": doc}).
			SetUpsert(true))
	}
	if _, err := m.database.Collection(votersCollection).BulkWrite(ctx, models,
		options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("insert voters of election %s: %w", electionID, err)
	}
	return nil
}

// VoterCount returns the number of mirrored voters of an election.
func (m *Mongo) VoterCount(ctx context.Context, electionID types.ElectionID) (int64, error) {
	return m.database.Collection(votersCollection).CountDocuments(ctx, bson.M{"electionId": electionID.String()})
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

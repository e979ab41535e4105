package mongo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trackmatch/internal/domain"
)

const defaultHistoryLimit = 50

type songDoc struct {
	Name        string   `bson:"name"`
	Artists     []string `bson:"artists,omitempty"`
	Artist      string   `bson:"artist,omitempty"`
	AlbumName   string   `bson:"albumName,omitempty"`
	AlbumArtist string   `bson:"albumArtist,omitempty"`
	Duration    float64  `bson:"duration"`
	Year        int      `bson:"year,omitempty"`
	TrackNumber int      `bson:"trackNumber,omitempty"`
	ISRC        string   `bson:"isrc,omitempty"`
	DownloadURL string   `bson:"downloadUrl,omitempty"`
}

type historyDoc struct {
	ID        string  `bson:"_id"`
	Song      songDoc `bson:"song"`
	SongKey   string  `bson:"songKey"`
	Provider  string  `bson:"provider,omitempty"`
	Link      string  `bson:"link,omitempty"`
	Score     float64 `bson:"score"`
	Accepted  bool    `bson:"accepted"`
	Found     bool    `bson:"found"`
	Method    string  `bson:"method,omitempty"`
	ElapsedMS int64   `bson:"elapsedMs"`
	CreatedAt int64   `bson:"createdAt"`
}

// HistoryRepository stores completed resolutions in the "resolutions"
// collection.
type HistoryRepository struct {
	collection *mongo.Collection
}

func NewHistoryRepository(client *mongo.Client, dbName string) *HistoryRepository {
	return &HistoryRepository{collection: client.Database(dbName).Collection("resolutions")}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "songKey", Value: 1}}},
		{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Record upserts by entry ID so a retried write does not duplicate it.
func (r *HistoryRepository) Record(ctx context.Context, entry domain.HistoryEntry) error {
	doc := toHistoryDoc(entry)
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []historyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, historyDocToEntry(doc))
	}
	return entries, nil
}

// songKey identifies a song independently of request options, for lookups
// such as "every resolution of this track".
func songKey(song domain.Song) string {
	return strings.ToLower(strings.TrimSpace(song.PrimaryArtist())) + "|" + strings.ToLower(strings.TrimSpace(song.Name))
}

func toHistoryDoc(entry domain.HistoryEntry) historyDoc {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return historyDoc{
		ID: entry.ID,
		Song: songDoc{
			Name:        entry.Song.Name,
			Artists:     entry.Song.Artists,
			Artist:      entry.Song.Artist,
			AlbumName:   entry.Song.AlbumName,
			AlbumArtist: entry.Song.AlbumArtist,
			Duration:    entry.Song.Duration,
			Year:        entry.Song.Year,
			TrackNumber: entry.Song.TrackNumber,
			ISRC:        entry.Song.ISRC,
			DownloadURL: entry.Song.DownloadURL,
		},
		SongKey:   songKey(entry.Song),
		Provider:  entry.Provider,
		Link:      entry.Link,
		Score:     entry.Score,
		Accepted:  entry.Accepted,
		Found:     entry.Found,
		Method:    entry.Method,
		ElapsedMS: entry.ElapsedMS,
		CreatedAt: createdAt.UnixMilli(),
	}
}

func historyDocToEntry(doc historyDoc) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID: doc.ID,
		Song: domain.Song{
			Name:        doc.Song.Name,
			Artists:     doc.Song.Artists,
			Artist:      doc.Song.Artist,
			AlbumName:   doc.Song.AlbumName,
			AlbumArtist: doc.Song.AlbumArtist,
			Duration:    doc.Song.Duration,
			Year:        doc.Song.Year,
			TrackNumber: doc.Song.TrackNumber,
			ISRC:        doc.Song.ISRC,
			DownloadURL: doc.Song.DownloadURL,
		},
		Provider:  doc.Provider,
		Link:      doc.Link,
		Score:     doc.Score,
		Accepted:  doc.Accepted,
		Found:     doc.Found,
		Method:    doc.Method,
		ElapsedMS: doc.ElapsedMS,
		CreatedAt: time.UnixMilli(doc.CreatedAt).UTC(),
	}
}

package loader

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/geomap/pkg/errors"
)

// DefaultMongoCollection is the collection receiving mask records.
const DefaultMongoCollection = "geomap_embeddings"

// MongoSink stores records as documents with a GeoJSON location so that
// masks can be queried by proximity with [MongoSink.Near].
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// point is a GeoJSON point.
type point struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type document struct {
	Category  string    `bson:"category"`
	Location  point     `bson:"location"`
	Embedding []float64 `bson:"embedding"`
	Dim       int       `bson:"dim"`
}

func toDocument(r Record) document {
	return document{
		Category:  r.Category,
		Location:  point{Type: "Point", Coordinates: []float64{r.Lon, r.Lat}},
		Embedding: r.Vector,
		Dim:       len(r.Vector),
	}
}

func (d document) record() Record {
	r := Record{Category: d.Category, Vector: d.Embedding}
	if len(d.Location.Coordinates) == 2 {
		r.Lon, r.Lat = d.Location.Coordinates[0], d.Location.Coordinates[1]
	}
	return r
}

// NewMongoSink connects to uri and ensures a 2dsphere index on the target
// collection.
func NewMongoSink(ctx context.Context, uri, database, collection string) (*MongoSink, error) {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	if database == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "mongo database name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect %s", uri)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping %s", uri)
	}
	s := &MongoSink{client: client, coll: client.Database(database).Collection(collection)}

	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}, {Key: "category", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create location index")
	}
	return s, nil
}

func (s *MongoSink) Put(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	docs := make([]any, len(recs))
	for i, r := range recs {
		docs[i] = toDocument(r)
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "insert %d records", len(recs))
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Near returns the stored records whose location lies within eps degrees of
// (lon, lat) on both axes.
func (s *MongoSink) Near(ctx context.Context, lon, lat, eps float64) ([]Record, error) {
	cur, err := s.coll.Find(ctx, nearFilter(lon, lat, eps))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "query records near %g;%g", lon, lat)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "read records near %g;%g", lon, lat)
	}
	out := make([]Record, len(docs))
	for i, d := range docs {
		out[i] = d.record()
	}
	return out, nil
}

// nearFilter selects locations inside the eps box around (lon, lat), clamped
// to valid coordinates.
func nearFilter(lon, lat, eps float64) bson.M {
	minLon, maxLon := max(lon-eps, -180), min(lon+eps, 180)
	minLat, maxLat := max(lat-eps, -90), min(lat+eps, 90)
	ring := [][]float64{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}
	return bson.M{"location": bson.M{"$geoWithin": bson.M{"$geometry": bson.M{
		"type":        "Polygon",
		"coordinates": [][][]float64{ring},
	}}}}
}

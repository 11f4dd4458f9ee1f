// Package sink provides the document sinks accepted encounters are written to.
//
// Every sink implements core.DocumentSink: a best-effort, non-atomic batch
// insert that reports how many documents were written. One bad document never
// stops the rest of its batch.
package sink

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JonMunkholm/encounters/internal/core"
)

// MongoConfig locates the target collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Mongo writes encounters to a MongoDB collection.
type Mongo struct {
	client     *mongo.Client
	coll       *mongo.Collection
	timeout    time.Duration
	insertMany func(context.Context, []interface{}, ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongo")
	}

	m := &Mongo{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
	}
	m.insertMany = m.coll.InsertMany
	if err := m.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.WithHint(err, "check MONGO_URI and that the server is reachable")
	}

	slog.Info("connected to mongo", "db", cfg.Database, "collection", cfg.Collection)
	return m, nil
}

// Ping checks that the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Wrap(err, "ping mongo")
	}
	return nil
}

// WriteBatch inserts docs with ordered=false, so every document is attempted
// even when some fail. Documents that cannot be encoded are skipped and their
// errors returned alongside any insert error.
func (m *Mongo) WriteBatch(ctx context.Context, docs []core.Encounter) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	batch := make([]interface{}, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		d, err := MongoDocument(doc)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "encode row %d", doc.Src.Row))
			continue
		}
		batch = append(batch, d)
	}
	if len(batch) == 0 {
		return 0, errors.Join(errs...)
	}

	_, err := m.insertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	written, err := insertedCount(len(batch), err)
	if err != nil {
		errs = append(errs, err)
	}
	return written, errors.Join(errs...)
}

// insertedCount derives the number of written documents from an unordered
// insert error. Individual write errors reduce the count; anything else is
// treated as nothing written.
func insertedCount(attempted int, err error) (int, error) {
	if err == nil {
		return attempted, nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		written := attempted - len(bwe.WriteErrors)
		if written < 0 {
			written = 0
		}
		return written, errors.Wrapf(err, "%d write error(s)", len(bwe.WriteErrors))
	}
	return 0, errors.Wrap(err, "insert batch")
}

// MongoDocument encodes an encounter with the amount as Decimal128 and dates
// as BSON dates.
func MongoDocument(e core.Encounter) (bson.D, error) {
	amount, err := primitive.ParseDecimal128(e.Billing.Amount.String())
	if err != nil {
		return nil, errors.Wrapf(err, "billing amount %q", e.Billing.Amount.String())
	}

	var discharge interface{}
	if e.Visit.DischargeDate != nil {
		discharge = *e.Visit.DischargeDate
	}

	return bson.D{
		{Key: "patient", Value: bson.D{
			{Key: "name", Value: e.Patient.Name},
			{Key: "age", Value: e.Patient.Age},
			{Key: "gender", Value: e.Patient.Gender},
			{Key: "blood_type", Value: e.Patient.BloodType},
		}},
		{Key: "visit", Value: bson.D{
			{Key: "admission_date", Value: e.Visit.AdmissionDate},
			{Key: "discharge_date", Value: discharge},
			{Key: "admission_type", Value: e.Visit.AdmissionType},
			{Key: "room_number", Value: e.Visit.RoomNumber},
		}},
		{Key: "medical", Value: bson.D{
			{Key: "condition", Value: e.Medical.Condition},
			{Key: "medication", Value: e.Medical.Medication},
			{Key: "test_results", Value: e.Medical.TestResults},
		}},
		{Key: "admin", Value: bson.D{
			{Key: "doctor", Value: e.Admin.Doctor},
			{Key: "hospital", Value: e.Admin.Hospital},
			{Key: "insurance_provider", Value: e.Admin.InsuranceProvider},
		}},
		{Key: "billing", Value: bson.D{
			{Key: "amount", Value: amount},
		}},
		{Key: "src", Value: bson.D{
			{Key: "file", Value: e.Src.File},
			{Key: "run_id", Value: e.Src.RunID},
			{Key: "row", Value: e.Src.Row},
			{Key: "natural_key", Value: e.Src.NaturalKey},
			{Key: "ingested_at", Value: e.Src.IngestedAt},
		}},
	}, nil
}

// Count returns the estimated (metadata) and exact document counts.
func (m *Mongo) Count(ctx context.Context) (Counts, error) {
	estimated, err := m.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return Counts{}, errors.Wrap(err, "estimate count")
	}
	exact, err := m.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return Counts{}, errors.Wrap(err, "count documents")
	}
	return Counts{Target: m.coll.Name(), Estimated: estimated, Exact: exact}, nil
}

// Collections lists the collections of the target database.
func (m *Mongo) Collections(ctx context.Context) ([]string, error) {
	names, err := m.coll.Database().ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	return names, nil
}

// Export streams every document as relaxed extended JSON, one per line.
func (m *Mongo) Export(ctx context.Context, w io.Writer, batchSize int) (int64, error) {
	opts := options.Find()
	if batchSize > 0 {
		opts.SetBatchSize(int32(batchSize))
	}

	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return 0, errors.Wrap(err, "find documents")
	}
	defer cur.Close(ctx)

	bw := bufio.NewWriter(w)
	var n int64
	for cur.Next(ctx) {
		line, err := bson.MarshalExtJSON(cur.Current, false, false)
		if err != nil {
			return n, errors.Wrapf(err, "encode document %d", n+1)
		}
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return n, errors.Wrap(err, "write export")
		}
		n++
	}
	if err := cur.Err(); err != nil {
		return n, errors.Wrap(err, "iterate documents")
	}
	return n, errors.Wrap(bw.Flush(), "flush export")
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

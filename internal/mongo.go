package internal

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tpay/internal/config"
)

const (
	collectionLog   = "sys_log"
	collectionFlows = "payment_flows"
	readLogLimit    = 1000
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
	timeout       time.Duration
}

// NewMongoClient returns nil without error when the sink is disabled
func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
		timeout:       10 * time.Second,
	}
	return client, nil
}

func (m *MongoDB) connect() (*mongo.Client, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, ctx, cancel, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client, cancel context.CancelFunc) {
	defer cancel()
	err := connection.Disconnect(m.ctx)
	if err != nil {
		log.Println("mongodb disconnect error;", err)
	}
}

func (m *MongoDB) insert(table string, data Data) error {
	connection, ctx, cancel, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection, cancel)
	collection := connection.Database(m.database).Collection(table)
	if _, err = collection.InsertOne(ctx, data); err != nil {
		return fmt.Errorf("mongodb insert into %s: %w", table, err)
	}
	return nil
}

func (m *MongoDB) WriteLogMessage(data Data) error {
	return m.insert(collectionLog, data)
}

// WriteFlowRecord keeps an audit trail of orchestrated flows; records carry
// identifiers and states only
func (m *MongoDB) WriteFlowRecord(data Data) error {
	return m.insert(collectionFlows, data)
}

// ReadLog returns the most recent log entries, newest first
func (m *MongoDB) ReadLog() ([]FeatureLogMessage, error) {
	connection, ctx, cancel, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection, cancel)

	var logMessages []FeatureLogMessage
	collection := connection.Database(m.database).Collection(collectionLog)
	filter := bson.D{}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(readLogLimit)
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if err = cursor.All(ctx, &logMessages); err != nil {
		return nil, err
	}
	return logMessages, nil
}

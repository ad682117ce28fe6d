package mongo

import (
	"context"
	"fmt"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type TransactionFunc func(ctx mongo.SessionContext) error

// TransactionManager groups the order and booking inserts of one reservation.
type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{client: client}
}

// DetectTransactionManager uses real transactions on replica sets and sharded clusters,
// and falls back to NoTransaction on a standalone server.
func DetectTransactionManager(ctx context.Context, client *mongo.Client, log *logger.Logger) TransactionManager {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		log.Warn("Could not detect Mongo topology, assuming transactions are supported", "error", err)
		return NewTransactionManager(client)
	}
	if hello.SetName == "" && hello.Msg != "isdbgrid" {
		log.Warn("Standalone Mongo detected, booking writes run without a transaction")
		return NoTransaction{}
	}
	log.Info("Mongo transactions enabled", "replica_set", hello.SetName)
	return NewTransactionManager(client)
}

// ExecuteTransaction commits every write made through the SessionContext together.
// AppErrors returned by fn pass through unwrapped so callers can still match codes.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	default:
		return fmt.Errorf("booking transaction aborted: %w", err)
	}
}

// NoTransaction runs fn directly against the server.
type NoTransaction struct{}

func (NoTransaction) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

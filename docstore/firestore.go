package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/sameep-scrape/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is a Store backed by Cloud Firestore collections
type Firestore struct {
	client *firestore.Client
	names  Config
}

// OpenFirestore connects to project cfg.URL, database cfg.Database, and
// checks the connection.
func OpenFirestore(ctx context.Context, cfg Config) (*Firestore, error) {
	if cfg.URL == "" {
		return nil, errors.New("firestore project id is required")
	}
	database := cfg.Database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}

	var opts []option.ClientOption
	if len(cfg.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}

	client, err := firestore.NewClientWithDatabase(ctx, cfg.URL, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("firestore not reachable: %w", err)
	}
	return &Firestore{client: client, names: cfg}, nil
}

// ping performs a lightweight check by attempting to iterate collections.
func ping(ctx context.Context, client *firestore.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	iter := client.Collections(ctx)
	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil
	}
	return err
}

func (f *Firestore) UpsertAccount(ctx context.Context, acc *model.Account) error {
	r := newAccountRecord(acc)
	if _, err := f.client.Collection(f.names.Accounts).Doc(r.ID).Set(ctx, r); err != nil {
		return fmt.Errorf("upsert account %s: %w", r.ID, err)
	}
	return nil
}

func (f *Firestore) UpsertSupplyPoint(ctx context.Context, sp *model.SupplyPoint) error {
	r := newSupplyPointRecord(sp)
	if _, err := f.client.Collection(f.names.SupplyPoints).Doc(r.ID).Set(ctx, r); err != nil {
		return fmt.Errorf("upsert supply point %s: %w", r.ID, err)
	}
	return nil
}

func (f *Firestore) HasStatementHash(ctx context.Context, hash string) (bool, error) {
	iter := f.client.Collection(f.names.Statements).Where("hash", "==", hash).Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up hash: %w", err)
	}
	return true, nil
}

func (f *Firestore) InsertStatement(ctx context.Context, st *model.Statement) (bool, error) {
	r := newStatementRecord(st, f.names.StoreContent)
	_, err := f.client.Collection(f.names.Statements).Doc(r.Key).Create(ctx, r)
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert statement %s: %w", r.InvoiceNumber, err)
	}
	return true, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

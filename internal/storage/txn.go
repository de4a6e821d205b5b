package storage

import (
	"context"

	"github.com/dgraph-io/badger/v2"
)

type txnKey struct{}

func withTxn(ctx context.Context, txn *badger.Txn) context.Context {
	return context.WithValue(ctx, txnKey{}, txn)
}

func txnFromContext(ctx context.Context) (*badger.Txn, bool) {
	txn, ok := ctx.Value(txnKey{}).(*badger.Txn)
	return txn, ok
}

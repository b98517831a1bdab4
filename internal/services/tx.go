package services

import (
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
)

// inTx runs fn in a transaction nested under dbc.Tx when present (a
// savepoint), otherwise in a fresh transaction on db.
func inTx(db *gorm.DB, dbc dbctx.Context, fn func(inner dbctx.Context) error) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = db
	}
	return transaction.WithContext(ctxutil.Default(dbc.Ctx)).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: tx})
	})
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophtoken/internal/dbx"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX. Managers whose
// stores live outside PostgreSQL ignore db for those stores.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}

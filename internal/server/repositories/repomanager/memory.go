package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophtoken/internal/dbx"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/users"
)

// MemoryRepositoryManager serves process-local stores. It needs no database
// and ignores every db argument.
type MemoryRepositoryManager struct {
	users  *users.MemoryRepository
	tokens *refreshtokens.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:  users.NewMemoryRepository(),
		tokens: refreshtokens.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(_ dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) RefreshTokens(_ dbx.DBTX) refreshtokens.Repository { return m.tokens }

package repomanager

import (
	"github.com/dmitrijs2005/gophtoken/internal/dbx"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/refreshtokens"
	"github.com/redis/go-redis/v9"
)

// RedisRepositoryManager keeps users in PostgreSQL and refresh tokens in
// Redis. Migrations still run for the users table.
type RedisRepositoryManager struct {
	PostgresRepositoryManager
	tokens *refreshtokens.RedisRepository
}

// RefreshTokens returns the shared Redis store; db is ignored.
func (m *RedisRepositoryManager) RefreshTokens(_ dbx.DBTX) refreshtokens.Repository {
	return m.tokens
}

// NewRedisRepositoryManager constructs a manager storing tokens under prefix.
func NewRedisRepositoryManager(client redis.UniversalClient, prefix string) RepositoryManager {
	return &RedisRepositoryManager{tokens: refreshtokens.NewRedisRepository(client, prefix)}
}

package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/dbx"
	"github.com/dmitrijs2005/gophtoken/internal/server/models"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/users"
)

// DemoUsers are provisioned into an empty directory when seeding is enabled.
var DemoUsers = []models.User{
	{UserName: "jeff.wang", AuthType: models.AuthTypeWindows, Roles: []string{"admin", "orders.read", "orders.write"}, IsActive: true},
	{UserName: "alice.chen", AuthType: models.AuthTypeWindows, Roles: []string{"viewer", "orders.read"}, IsActive: true},
}

// SeedDemoUsers inserts DemoUsers when the directory is empty and returns how
// many were created. With a database all inserts share one transaction.
func SeedDemoUsers(ctx context.Context, db *sql.DB, m repomanager.RepositoryManager, now time.Time) (int, error) {
	if db == nil {
		return seedUsers(ctx, m.Users(nil), now)
	}

	var n int
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = seedUsers(ctx, m.Users(tx), now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func seedUsers(ctx context.Context, repo users.Repository, now time.Time) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("error counting users: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for _, demo := range DemoUsers {
		u := demo
		u.Roles = append([]string(nil), demo.Roles...)
		u.CreatedAt = now
		if _, err := repo.Create(ctx, &u); err != nil {
			return 0, fmt.Errorf("error creating user %s: %w", u.UserName, err)
		}
	}
	return len(DemoUsers), nil
}

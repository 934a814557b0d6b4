package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/auth"
	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
	"github.com/frahmantamala/event-permission/internal/user"
	userPostgres "github.com/frahmantamala/event-permission/internal/user/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

const seedPassword = "password123"

// demoUsers covers one account per role in a single department so the
// whole submit and review flow can be walked through locally.
var demoUsers = []auth.RegisterDTO{
	{Email: "student@campus.edu", Name: "Asha Rao", Role: string(coreuser.RoleStudent), RollNumber: "CS-042"},
	{Email: "faculty@campus.edu", Name: "Dr. Meera Iyer", Role: string(coreuser.RoleFaculty), Department: "CS"},
	{Email: "hod@campus.edu", Name: "Prof. Rahul Sen", Role: string(coreuser.RoleHOD), Department: "CS"},
	{Email: "hod.ee@campus.edu", Name: "Prof. Anita Das", Role: string(coreuser.RoleHOD), Department: "EE"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with demo accounts for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		lg := setupLogger(cfg)

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		ctx := context.Background()

		if clearData {
			if err := clearSeedData(ctx, db); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared permission requests and users")
		}

		repo := userPostgres.NewUserRepository(db)
		users := user.NewService(repo, lg.With("component", "user"))
		authService := auth.NewService(users, nil, auth.NewMemoryRevocationStore(), cfg.Security.BCryptCost, lg.With("component", "auth"))

		for _, dto := range demoUsers {
			dto.Password = seedPassword
			u, err := authService.SignUp(ctx, dto)
			if errors.Is(err, internal.ErrEmailTaken) {
				fmt.Printf("%s already exists; skipping\n", dto.Email)
				continue
			}
			if err != nil {
				log.Fatalf("failed to seed %s: %v", dto.Email, err)
			}
			fmt.Printf("Seeded %s user: %s\n", u.Role, u.Email)
		}

		for _, role := range []coreuser.Role{coreuser.RoleStudent, coreuser.RoleFaculty, coreuser.RoleHOD} {
			n, err := repo.CountByRole(ctx, string(role))
			if err != nil {
				log.Fatalf("failed to count %s users: %v", role, err)
			}
			fmt.Printf("%s accounts: %d\n", role, n)
		}

		fmt.Printf("Demo accounts use the password %q\n", seedPassword)
	},
}

func clearSeedData(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"permission_requests", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return tx.Commit()
}

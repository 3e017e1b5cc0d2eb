package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Freeeeeet/class_scheduler/internal/app"
	"github.com/Freeeeeet/class_scheduler/internal/auth"
	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository"
)

// seed creates or resets the default teacher and student accounts.
func main() {
	var (
		dsn             = flag.String("dsn", "", "database DSN (defaults to DB_DSN)")
		teacherName     = flag.String("teacher", "teacher", "teacher username")
		teacherPassword = flag.String("teacher-password", "teacher123", "teacher password")
		studentName     = flag.String("student", "student1", "student username")
		studentPassword = flag.String("student-password", "student123", "student password")
	)
	flag.Parse()

	_ = godotenv.Load(".env")
	if *dsn == "" {
		*dsn = os.Getenv("DB_DSN")
	}
	if *dsn == "" {
		log.Fatal("DB_DSN is required but not set")
	}

	logger := app.NewLogger(os.Getenv("ENV"), "")
	defer logger.Sync()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		logger.Fatal("Failed to create pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	users := repository.NewPgStore(pool).Users()
	accounts := []struct {
		name     string
		password string
		role     model.Role
	}{
		{*teacherName, *teacherPassword, model.RoleTeacher},
		{*studentName, *studentPassword, model.RoleStudent},
	}

	for _, a := range accounts {
		hash, err := auth.HashPassword(a.password)
		if err != nil {
			logger.Fatal("Failed to hash password", zap.Error(err))
		}

		user := &model.User{
			ID:           uuid.NewString(),
			Name:         a.name,
			PasswordHash: hash,
			Role:         a.role,
		}
		if err := users.Upsert(ctx, user); err != nil {
			logger.Fatal("Failed to upsert user", zap.String("name", a.name), zap.Error(err))
		}

		logger.Info("User seeded",
			zap.String("id", user.ID),
			zap.String("name", user.Name),
			zap.String("role", string(user.Role)),
		)
	}
}

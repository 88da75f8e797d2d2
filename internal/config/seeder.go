package config

import (
	"context"
	"log"
)

// AdminEnsurer creates the first ADMIN account when none exists
type AdminEnsurer interface {
	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
}

// Seeder handles database seeding
type Seeder struct {
	users     AdminEnsurer
	bootstrap BootstrapConfig
}

// NewSeeder creates a new seeder instance
func NewSeeder(users AdminEnsurer, bootstrap BootstrapConfig) *Seeder {
	return &Seeder{users: users, bootstrap: bootstrap}
}

// Run executes all seeders
func (s *Seeder) Run(ctx context.Context) error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedAdminUser(ctx); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedAdminUser seeds the bootstrap admin from BOOTSTRAP_ADMIN_EMAIL / BOOTSTRAP_ADMIN_PASSWORD
func (s *Seeder) seedAdminUser(ctx context.Context) error {
	if s.bootstrap.AdminEmail == "" || s.bootstrap.AdminPassword == "" {
		log.Println("⚠️ Skipping admin seed: BOOTSTRAP_ADMIN_EMAIL / BOOTSTRAP_ADMIN_PASSWORD not set")
		return nil
	}

	created, err := s.users.EnsureAdmin(ctx, s.bootstrap.AdminEmail, s.bootstrap.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Printf("✅ Admin user created: %s", s.bootstrap.AdminEmail)
	}
	return nil
}

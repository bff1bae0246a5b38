package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/telehealth-booking/internal/db"
	"github.com/hackgods/telehealth-booking/internal/logging"
	"github.com/hackgods/telehealth-booking/internal/schedule"
)

type seedOptions struct {
	dsn      string
	timezone string
	doctors  int
	patients int
	services int
	days     int
	migrate  bool
}

func main() {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate doctors, patients, services and upcoming schedules with fake data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.dsn, "dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN")
	cmd.Flags().StringVar(&opts.timezone, "timezone", envOr("CLINIC_TIMEZONE", "Asia/Kolkata"), "clinic timezone")
	cmd.Flags().IntVar(&opts.doctors, "doctors", 20, "number of doctors")
	cmd.Flags().IntVar(&opts.patients, "patients", 2000, "number of patients")
	cmd.Flags().IntVar(&opts.services, "services", 2, "services per doctor")
	cmd.Flags().IntVar(&opts.days, "days", 7, "days of schedules per service, starting tomorrow")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply the schema before seeding")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts seedOptions) error {
	logger := logging.Init("seed", "dev")
	if opts.dsn == "" {
		return fmt.Errorf("POSTGRES_DSN or --dsn is required")
	}
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connCtx, opts.dsn, 4)
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if opts.migrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctors, err := seedDoctors(ctx, pool, opts.doctors, logger)
	if err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}
	if err := seedPatients(ctx, pool, opts.patients, logger); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	services, err := seedServices(ctx, pool, doctors, opts.services, logger)
	if err != nil {
		return fmt.Errorf("seed services: %w", err)
	}

	svc := schedule.NewService(schedule.NewPgStore(pool), loc, logger)
	if err := seedSchedules(ctx, svc, services, opts.days, loc, logger); err != nil {
		return fmt.Errorf("seed schedules: %w", err)
	}

	logger.Info().Msg("seed complete")
	return nil
}

type seededService struct {
	id       uuid.UUID
	doctorID uuid.UUID
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding doctors")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, "Dr. "+gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			// Some patients never registered an email.
			var email *string
			if gofakeit.Number(0, 9) > 0 {
				e := gofakeit.Email()
				email = &e
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}
	return nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID, perDoctor int, logger zerolog.Logger) ([]seededService, error) {
	logger.Info().Int("doctors", len(doctors)).Int("per_doctor", perDoctor).Msg("seeding services")

	names := []string{
		"General Consultation",
		"Dermatology Review",
		"Cardiology Follow-up",
		"Pediatric Visit",
		"Mental Health Session",
		"Nutrition Counselling",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var out []seededService
	for _, doctorID := range doctors {
		for i := 0; i < perDoctor; i++ {
			id := uuid.New()
			// Fees are minor units, between 200.00 and 1500.00.
			fee := int64(gofakeit.Number(4, 30)) * 5000
			_, err := tx.Exec(ctx, `
				INSERT INTO services (id, doctor_id, name, fee, created_at)
				VALUES ($1, $2, $3, $4, now())
			`, id, doctorID, names[gofakeit.Number(0, len(names)-1)], fee)
			if err != nil {
				return nil, err
			}
			out = append(out, seededService{id: id, doctorID: doctorID})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// seedSchedules gives every service one window per day. Windows of the same
// doctor are staggered so they never overlap.
func seedSchedules(ctx context.Context, svc *schedule.Service, services []seededService, days int, loc *time.Location, logger zerolog.Logger) error {
	logger.Info().Int("services", len(services)).Int("days", days).Msg("seeding schedules")

	durations := []int{15, 20, 30}
	nextHour := make(map[uuid.UUID]int)
	today := time.Now().In(loc)
	created := 0

	for _, s := range services {
		hour, ok := nextHour[s.doctorID]
		if !ok {
			hour = 9
		}
		nextHour[s.doctorID] = hour + 2
		if hour > 19 {
			continue
		}

		for d := 1; d <= days; d++ {
			day := today.AddDate(0, 0, d)
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			_, err := svc.CreateSchedule(ctx, schedule.WindowRequest{
				DoctorID:        s.doctorID,
				ServiceID:       s.id,
				Start:           start,
				End:             start.Add(2 * time.Hour),
				DurationMinutes: durations[gofakeit.Number(0, len(durations)-1)],
			})
			if err != nil {
				return fmt.Errorf("service %s day %d: %w", s.id, d, err)
			}
			created++
		}
	}

	logger.Info().Int("created", created).Msg("schedules seeded")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

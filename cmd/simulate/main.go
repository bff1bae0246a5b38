package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/telehealth-booking/internal/api"
	"github.com/hackgods/telehealth-booking/internal/db"
	"github.com/hackgods/telehealth-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	PostgresDSN  string
	JWTSecret    string
	Duration     time.Duration
	Workers      int
	HoldRatio    float64
	ReadRatio    float64
	PatientLimit int
	SlotLimit    int
}

type slotRef struct {
	ScheduleID uuid.UUID
	SlotID     uuid.UUID
}

type DataPool struct {
	Patients  []uuid.UUID
	Schedules []uuid.UUID
	Slots     []slotRef
	tokens    map[uuid.UUID]string

	mu    sync.Mutex
	holds map[uuid.UUID]int // successful holds per slot
}

func (dp *DataPool) RecordHold(slotID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.holds[slotID]++
}

// DoubleHolds counts slots that more than one patient managed to hold.
func (dp *DataPool) DoubleHolds() int {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	n := 0
	for _, c := range dp.holds {
		if c > 1 {
			n++
		}
	}
	return n
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Hold           OperationMetrics
	AvailableSlots OperationMetrics
	Appointments   OperationMetrics
	Wallet         OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	_ = godotenv.Load()
	cfg := SimConfig{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Load test the booking API with concurrent slot holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.APIBaseURL, "api", envOr("SIM_API_BASE_URL", "http://localhost:8080"), "API base URL")
	f.StringVar(&cfg.PostgresDSN, "dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN used to pick patients and slots")
	f.StringVar(&cfg.JWTSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "secret for minting patient tokens")
	f.DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to run")
	f.IntVar(&cfg.Workers, "workers", 20, "concurrent workers")
	f.Float64Var(&cfg.HoldRatio, "hold-ratio", 0.6, "share of operations that try to hold a slot")
	f.Float64Var(&cfg.ReadRatio, "read-ratio", 0.4, "share of read operations")
	f.IntVar(&cfg.PatientLimit, "patients", 1000, "patients to load")
	f.IntVar(&cfg.SlotLimit, "slots", 200, "available slots to load; fewer slots means more contention")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg SimConfig) error {
	logger := logging.Init("simulate", "dev")
	if err := validateConfig(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("hold", cfg.HoldRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(loadCtx, cfg.PostgresDSN, 2)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(loadCtx, pgPool, cfg)
	if err != nil {
		return fmt.Errorf("load data pool: %w", err)
	}
	logger.Info().Int("patients", len(dataPool.Patients)).Int("slots", len(dataPool.Slots)).Msg("data loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}
	sim.Run(ctx)
	sim.PrintReport()
	return nil
}

func validateConfig(cfg *SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env, environment or --dsn)")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required (set in .env, environment or --jwt-secret)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be > 0")
	}

	total := cfg.HoldRatio + cfg.ReadRatio
	if total <= 0 {
		return fmt.Errorf("hold-ratio and read-ratio cannot both be zero")
	}
	cfg.HoldRatio /= total
	cfg.ReadRatio /= total
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{
		tokens: make(map[uuid.UUID]string),
		holds:  make(map[uuid.UUID]int),
	}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT sl.schedule_id, sl.id
		FROM schedule_slots sl
		JOIN schedules s ON s.id = sl.schedule_id
		WHERE sl.status = 'available'
		  AND NOT sl.is_break
		  AND NOT s.is_cancelled
		  AND sl.start_time > now()
		ORDER BY sl.start_time
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	seen := make(map[uuid.UUID]bool)
	for rows.Next() {
		var ref slotRef
		if err := rows.Scan(&ref.ScheduleID, &ref.SlotID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, ref)
		if !seen[ref.ScheduleID] {
			seen[ref.ScheduleID] = true
			dataPool.Schedules = append(dataPool.Schedules, ref.ScheduleID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run the seed command first")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no available slots loaded")
	}

	for _, id := range dataPool.Patients {
		tok, err := api.SignToken([]byte(cfg.JWTSecret), id, api.RolePatient, cfg.Duration+time.Hour)
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
		dataPool.tokens[id] = tok
	}
	return dataPool, nil
}

func (s *Simulator) Run(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.HoldRatio {
				s.doHold(ctx, rng)
				continue
			}
			switch rng.Intn(3) {
			case 0:
				s.doAvailableSlots(ctx, rng)
			case 1:
				s.doListAppointments(ctx, rng)
			case 2:
				s.doWallet(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomPatient(rng *rand.Rand) (uuid.UUID, string) {
	id := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	return id, s.pool.tokens[id]
}

// call issues one request and returns the status code, or 0 on transport error.
func (s *Simulator) call(ctx context.Context, method, path, token string, body any) (int, time.Duration) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, 0
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()
	return resp.StatusCode, latency
}

func (s *Simulator) doHold(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	_, token := s.randomPatient(rng)

	status, latency := s.call(ctx, http.MethodPost, "/api/v1/bookings", token, api.InitiateBookingRequest{
		ScheduleID: slot.ScheduleID.String(),
		SlotID:     slot.SlotID.String(),
	})
	if ctx.Err() != nil {
		return
	}
	success := status == http.StatusCreated
	if success {
		s.pool.RecordHold(slot.SlotID)
	}
	s.metrics.Hold.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doAvailableSlots(ctx context.Context, rng *rand.Rand) {
	scheduleID := s.pool.Schedules[rng.Intn(len(s.pool.Schedules))]
	_, token := s.randomPatient(rng)

	status, latency := s.call(ctx, http.MethodGet, "/api/v1/schedules/"+scheduleID.String()+"/slots", token, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.AvailableSlots.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) doListAppointments(ctx context.Context, rng *rand.Rand) {
	_, token := s.randomPatient(rng)

	status, latency := s.call(ctx, http.MethodGet, "/api/v1/appointments?status=booked", token, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Appointments.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) doWallet(ctx context.Context, rng *rand.Rand) {
	_, token := s.randomPatient(rng)

	status, latency := s.call(ctx, http.MethodGet, "/api/v1/wallet", token, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Wallet.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots contended: %d\n", len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Hold slot", &s.metrics.Hold)
	printOperationReport("Available slots", &s.metrics.AvailableSlots)
	printOperationReport("List appointments", &s.metrics.Appointments)
	printOperationReport("Wallet", &s.metrics.Wallet)

	// A slot can only be held twice if its first hold expired during the run.
	if n := s.pool.DoubleHolds(); n > 0 {
		fmt.Printf("WARNING: %d slots were held more than once\n", n)
	} else {
		fmt.Println("No slot was held by more than one patient")
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

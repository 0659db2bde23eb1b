package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/punchamoorthee/bankledger/internal/domain"
	"github.com/punchamoorthee/bankledger/internal/models"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	accounts    int
	amount      string
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&accounts, "accounts", 1000, "Number of seeded accounts")
	flag.StringVar(&amount, "amount", "1.00", "Amount moved per transfer")
}

// stats counts responses by outcome.
type stats struct {
	total        atomic.Uint64
	ok           atomic.Uint64
	insufficient atomic.Uint64 // 422
	unavailable  atomic.Uint64 // 503: lock timeouts and persistence failures
	rejected     atomic.Uint64 // other 4xx
	errors       atomic.Uint64 // transport errors and unexpected statuses
}

func (s *stats) record(code int) {
	s.total.Add(1)
	switch {
	case code == http.StatusOK:
		s.ok.Add(1)
	case code == http.StatusUnprocessableEntity:
		s.insufficient.Add(1)
	case code == http.StatusServiceUnavailable:
		s.unavailable.Add(1)
	case code >= 400 && code < 500:
		s.rejected.Add(1)
	default:
		s.errors.Add(1)
	}
}

func main() {
	flag.Parse()
	if _, err := domain.ParseAmount(amount); err != nil {
		log.Fatalf("invalid -amount %q", amount)
	}
	if accounts < 2 {
		log.Fatal("-accounts must be at least 2")
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	client := &http.Client{Timeout: 10 * time.Second}
	before, err := totalBalance(client)
	if err != nil {
		log.Fatalf("read balances: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var st stats
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			run(ctx, client, &st)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	after, err := totalBalance(client)
	if err != nil {
		log.Fatalf("read balances: %v", err)
	}
	report(&st, elapsed, before, after)
}

func run(ctx context.Context, client *http.Client, st *stats) {
	for ctx.Err() == nil {
		from, to := pickPair()
		body, _ := json.Marshal(models.TransferRequest{
			SrcAccount:  domain.SeedAccountNumber(from),
			DestAccount: domain.SeedAccountNumber(to),
			Amount:      domain.NewAmount(amount),
		})

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL+"/api/v1/transfers", bytes.NewReader(body))
		if err != nil {
			st.errors.Add(1)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				st.errors.Add(1)
			}
			continue
		}
		resp.Body.Close()
		st.record(resp.StatusCode)
	}
}

// pickPair returns two distinct seeded account indexes. The hotspot workload
// sends 90% of traffic between accounts 1 and 2 in both directions, which is
// where lock ordering matters.
func pickPair() (int, int) {
	if workload == "hotspot" && rand.Float32() < 0.90 {
		if rand.Intn(2) == 0 {
			return 1, 2
		}
		return 2, 1
	}
	a := rand.Intn(accounts) + 1
	b := rand.Intn(accounts-1) + 1
	if b >= a {
		b++
	}
	return a, b
}

// totalBalance sums every account balance; transfers must leave it unchanged.
func totalBalance(client *http.Client) (decimal.Decimal, error) {
	resp, err := client.Get(targetURL + "/api/v1/accounts")
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("list accounts returned %d", resp.StatusCode)
	}

	var list []models.Account
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range list {
		b, err := decimal.NewFromString(a.Balance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("account %s: %w", a.Number, err)
		}
		sum = sum.Add(b)
	}
	return sum, nil
}

func report(st *stats, d time.Duration, before, after decimal.Decimal) {
	total := st.total.Load()
	var unavailableRate float64
	if total > 0 {
		unavailableRate = float64(st.unavailable.Load()) / float64(total) * 100
	}

	results := map[string]any{
		"workload":             workload,
		"duration_sec":         d.Seconds(),
		"total_requests":       total,
		"throughput_tps":       float64(total) / d.Seconds(),
		"success":              st.ok.Load(),
		"insufficient_funds":   st.insufficient.Load(),
		"unavailable":          st.unavailable.Load(),
		"unavailable_rate_pct": unavailableRate,
		"rejected":             st.rejected.Load(),
		"errors":               st.errors.Load(),
		"balance_before":       domain.FormatMoney(before),
		"balance_after":        domain.FormatMoney(after),
		"balance_conserved":    before.Equal(after),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}

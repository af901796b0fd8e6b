// Command tokenload races concurrent renewals of the same refresh token and
// checks that exactly one caller wins each round.
//
//	tokenload -workers 32 -rounds 500
//	tokenload -backend memory
//	tokenload -redis-addr localhost:6379
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type options struct {
	workers   int
	rounds    int
	backend   string
	redisAddr string
	prefix    string
}

func main() {
	var opts options
	flag.IntVar(&opts.workers, "workers", 16, "concurrent renewals per round")
	flag.IntVar(&opts.rounds, "rounds", 200, "number of rounds")
	flag.StringVar(&opts.backend, "backend", "redis", "redis or memory")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flag.StringVar(&opts.prefix, "prefix", "gtload", "redis key prefix")
	flag.Parse()

	if opts.workers <= 0 || opts.rounds <= 0 {
		fmt.Fprintln(os.Stderr, "workers and rounds must be > 0")
		os.Exit(2)
	}

	report, err := run(context.Background(), opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenload: %v\n", err)
		os.Exit(1)
	}
	if report.badRounds > 0 {
		os.Exit(1)
	}
}

type report struct {
	rounds    int
	badRounds int
	winners   int64
	losers    int64
	errors    int64
	stats     phaseStats
}

func run(ctx context.Context, opts options, out io.Writer) (report, error) {
	engine, cleanup, err := buildEngine(opts, out)
	if err != nil {
		return report{}, err
	}
	defer cleanup()

	var (
		rep       = report{rounds: opts.rounds}
		latencies = make([]time.Duration, 0, opts.rounds*opts.workers)
		mu        sync.Mutex
	)

	start := time.Now()
	for round := 0; round < opts.rounds; round++ {
		pair, err := engine.IssuePair(ctx, fmt.Sprintf("load-user-%d", round))
		if err != nil {
			return rep, fmt.Errorf("seed round %d: %w", round, err)
		}

		var (
			wg      sync.WaitGroup
			gate    = make(chan struct{})
			winners int64
		)
		for w := 0; w < opts.workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				_, err := engine.Renew(ctx, pair.RefreshToken)
				d := time.Since(t0)

				switch {
				case err == nil:
					atomic.AddInt64(&winners, 1)
				case errors.Is(err, goToken.ErrUnauthorized):
					atomic.AddInt64(&rep.losers, 1)
				default:
					atomic.AddInt64(&rep.errors, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		close(gate)
		wg.Wait()

		rep.winners += winners
		if winners != 1 {
			rep.badRounds++
			fmt.Fprintf(out, "round %d: %d winners\n", round, winners)
		}
	}
	rep.stats = computeStats(time.Since(start), latencies, rep.errors)

	fmt.Fprintln(out, "---- results ----")
	fmt.Fprintf(out, "rounds=%d workers=%d winners=%d losers=%d errors=%d bad_rounds=%d\n",
		rep.rounds, opts.workers, rep.winners, rep.losers, rep.errors, rep.badRounds)
	printStats(out, "renew", rep.stats)
	return rep, nil
}

func buildEngine(opts options, out io.Writer) (*goToken.Engine, func(), error) {
	cfg := goToken.DefaultConfig()
	cfg.Token.AccessSecret = bytes.Repeat([]byte("A"), 64)
	cfg.Token.RefreshSecret = bytes.Repeat([]byte("R"), 64)
	cfg.Token.Issuer = "tokenload"
	cfg.Token.Audience = "tokenload"
	cfg.Store.RedisPrefix = opts.prefix

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	builder := goToken.New().WithConfig(cfg).WithLogger(quiet)

	var cleanup func()
	switch opts.backend {
	case "memory":
		builder = builder.WithStore(store.NewMemoryStore())
		cleanup = func() {}
		fmt.Fprintln(out, "using in-memory store (two-step rotation)")
	case "redis":
		addr := opts.redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		var mr *miniredis.Miniredis
		if addr == "" {
			var err error
			mr, err = miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start miniredis: %w", err)
			}
			addr = mr.Addr()
			fmt.Fprintf(out, "using miniredis at %s\n", addr)
		} else {
			fmt.Fprintf(out, "using redis at %s\n", addr)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		builder = builder.WithRedis(client)
		cleanup = func() {
			_ = client.Close()
			if mr != nil {
				mr.Close()
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", opts.backend)
	}

	engine, err := builder.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		cleanup()
	}, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

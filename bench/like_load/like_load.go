package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EllysonAlves/follower/internal/api"
	"github.com/EllysonAlves/follower/internal/engine"
	"github.com/EllysonAlves/follower/internal/events"
	"github.com/EllysonAlves/follower/internal/middleware"
	"github.com/EllysonAlves/follower/internal/notify"
	"github.com/EllysonAlves/follower/internal/store"
)

// like_load hammers one post with like taps from many goroutines sharing a
// single engine, the way rapid taps on one device would, and reports how
// many taps were dropped by the in-flight guard and how long accepted
// toggles took end to end.
func main() {
	// --- Command-line flags ---
	var server string
	var token string
	var login, password string
	var postID string
	var duration int
	var concurrency int
	var csvFile string
	var trimPercent float64

	flag.StringVar(&server, "server", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "bearer token")
	flag.StringVar(&login, "login", "", "login used when no token is given")
	flag.StringVar(&password, "password", "", "password used with -login")
	flag.StringVar(&postID, "post", "", "id of the post to like")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 20, "number of concurrent tapping goroutines")
	flag.StringVar(&csvFile, "csv", "like_latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.Parse()

	if postID == "" {
		fmt.Println("-post is required")
		os.Exit(2)
	}

	ctx := context.Background()
	tokens := middleware.NewMemoryTokenStore(token)
	remote := api.New(server, 10*time.Second, tokens)
	if token == "" {
		if _, err := remote.Login(ctx, login, password); err != nil {
			panic(fmt.Sprintf("login failed: %v", err))
		}
	}

	feed := store.New(remote.ListPosts)
	if err := feed.Refresh(ctx); err != nil {
		panic(fmt.Sprintf("initial feed load failed: %v", err))
	}
	if _, ok := feed.Post(postID); !ok {
		panic("post " + postID + " is not in the feed")
	}

	bus := events.New()
	defer bus.Close()
	eng := engine.New(remote, bus, notify.Discard{}, engine.Options{Feed: feed})

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	var taps int64
	var accepted int64
	var dropped int64
	var conflicts int64
	var failures int64

	latencySlices := make([][]float64, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			var localLatencies []float64

			for time.Now().Before(stopTime) {
				start := time.Now()
				err := eng.TogglePostLike(ctx, feed, postID)
				atomic.AddInt64(&taps, 1)

				switch {
				case errors.Is(err, engine.ErrInFlight):
					atomic.AddInt64(&dropped, 1)
					time.Sleep(time.Millisecond)
					continue
				case api.IsConflict(err):
					atomic.AddInt64(&conflicts, 1)
				case err != nil:
					atomic.AddInt64(&failures, 1)
					fmt.Printf("Toggle error (%s): %v\n", api.Classify(err), err)
				default:
					atomic.AddInt64(&accepted, 1)
				}
				localLatencies = append(localLatencies, time.Since(start).Seconds()*1000)
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	p, _ := feed.Post(postID)
	fmt.Printf("Taps: %d  Accepted: %d  Dropped in flight: %d  Conflicts: %d  Failures: %d\n",
		taps, accepted, dropped, conflicts, failures)
	fmt.Printf("Final local state: likes=%d liked=%v\n", p.LikesCount, p.LikedByCurrentUser)
	fmt.Printf("Toggle latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n",
		trimmedMean(allLatencies, trimPercent),
		percentile(allLatencies, 50), percentile(allLatencies, 90), percentile(allLatencies, 99))

	// --- Save latencies to CSV ---
	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	trimmed := data[trim : len(data)-trim]
	if len(trimmed) == 0 {
		return 0
	}
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile interpolates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}

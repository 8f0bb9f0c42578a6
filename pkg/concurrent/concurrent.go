// Package concurrent holds small fan-out helpers over slices and
// channels. They spawn goroutines per call and always wait for their
// work to finish before returning.
package concurrent

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ForEach runs fn for every item, each on its own goroutine, and waits
// for all of them.
func ForEach[T any](items []T, fn func(T)) {
	var wg sync.WaitGroup
	wg.Add(len(items))
	for _, item := range items {
		go func(v T) {
			defer wg.Done()
			fn(v)
		}(item)
	}
	wg.Wait()
}

// ForEachLimit is ForEach with at most limit goroutines in flight.
// A non-positive limit falls back to GOMAXPROCS.
func ForEachLimit[T any](items []T, limit int, fn func(T)) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, limit)
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(v T) {
			defer wg.Done()
			fn(v)
			<-sem
		}(item)
	}
	wg.Wait()
}

// TryEach runs fn for every item with at most limit goroutines and
// returns the first error. Remaining items still run to completion.
func TryEach[T any](items []T, limit int, fn func(T) error) error {
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}
	for _, item := range items {
		v := item
		group.Go(func() error {
			return fn(v)
		})
	}
	return group.Wait()
}

// Map applies fn to every item with at most limit goroutines and
// returns the results in input order. A non-positive limit falls back
// to GOMAXPROCS.
func Map[T any, R any](items []T, limit int, fn func(T) R) []R {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	out := make([]R, len(items))
	var wg sync.WaitGroup
	sem := make(chan struct{}, limit)
	for idx, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer wg.Done()
			out[i] = fn(v)
			<-sem
		}(idx, item)
	}
	wg.Wait()
	return out
}

// Merge fans multiple channels into one. The output closes once every
// input has closed.
func Merge[T any](chs ...<-chan T) <-chan T {
	out := make(chan T)
	var wg sync.WaitGroup
	wg.Add(len(chs))
	for _, ch := range chs {
		go func(c <-chan T) {
			defer wg.Done()
			for v := range c {
				out <- v
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

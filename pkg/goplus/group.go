package goplus

import (
	"sync"
	"sync/atomic"
)

var (
	defaultGroup     *WaitGroup
	defaultGroupOnce sync.Once
)

func DefaultGroup() *WaitGroup {
	defaultGroupOnce.Do(func() {
		defaultGroup = NewWaitGroup()
	})
	return defaultGroup
}

// Go spawns fn on the default group with panic recovery.
func Go(fn func()) {
	DefaultGroup().Go(fn)
}

func Wait() {
	DefaultGroup().Wait()
}

// WaitGroup is a sync.WaitGroup that recovers panics in spawned
// goroutines and tracks the live goroutine count.
type WaitGroup struct {
	wg             sync.WaitGroup
	CurrentGoCount atomic.Int64
}

func NewWaitGroup() *WaitGroup {
	return &WaitGroup{}
}

func (s *WaitGroup) Go(fn func()) {
	s.Add()

	go func() {
		defer Recover()
		defer s.Done()

		fn()
	}()
}

func (s *WaitGroup) Add() {
	s.CurrentGoCount.Add(1)
	s.wg.Add(1)
}

func (s *WaitGroup) Done() {
	s.CurrentGoCount.Add(-1)
	s.wg.Done()
}

func (s *WaitGroup) Wait() {
	s.wg.Wait()
}

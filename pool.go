// pool.go: bounded worker pool for parallel descriptor analysis
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// EnvMaxAnalysisThreads sizes the default analysis pool. Non-positive
// or unparsable values fall back to the hardware thread count.
const EnvMaxAnalysisThreads = "PLUGIN_MANAGER_MAX_THREADS"

// analysisPool executes descriptor-analysis tasks on a bounded set of
// workers. Tasks are not interruptible mid-analysis; Close stops intake
// and drains everything already submitted.
type analysisPool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	closed atomic.Bool
	once   sync.Once
	logger Logger
}

func newAnalysisPool(size int, logger Logger) *analysisPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = DefaultLogger()
	}
	p := &analysisPool{
		tasks:  make(chan func(), size*4),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *analysisPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		func() {
			defer withStackRecover(p.logger)()
			task()
		}()
	}
}

// Submit enqueues a task, blocking when the queue is full. It reports
// false once the pool is closed.
func (p *analysisPool) Submit(task func()) (ok bool) {
	if p.closed.Load() {
		return false
	}
	defer func() {
		// Close may race with Submit; a send on the closed channel is
		// absorbed here and reported as rejection.
		if recover() != nil {
			ok = false
		}
	}()
	p.tasks <- task
	return true
}

// Close stops intake and waits for in-flight tasks to finish.
func (p *analysisPool) Close() {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.tasks)
	})
	p.wg.Wait()
}

// defaultPoolSize reads the environment sizing knob.
func defaultPoolSize() int {
	raw := os.Getenv(EnvMaxAnalysisThreads)
	if raw == "" {
		return runtime.NumCPU()
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

var (
	sharedPoolOnce sync.Once
	sharedPool     *analysisPool
)

// sharedAnalysisPool returns the lazily-initialized process-wide pool,
// sized by PLUGIN_MANAGER_MAX_THREADS. Managers use it unless given a
// dedicated pool through WithWorkers.
func sharedAnalysisPool() *analysisPool {
	sharedPoolOnce.Do(func() {
		sharedPool = newAnalysisPool(defaultPoolSize(), DefaultLogger())
	})
	return sharedPool
}

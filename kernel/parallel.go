package kernel

import (
	"sync"
)

// parallelThreshold is the minimum molecule count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// workChunk represents a range of molecules for a worker to advance.
type workChunk struct {
	index      int
	start, end int
}

// chunkDone reports a finished chunk and the first error it hit.
type chunkDone struct {
	index int
	err   error
}

// parallelState holds the worker pool that advances molecules. Workers
// only read the scene and write the molecules and results of their own
// chunk; sensors and buffered mutations stay on the kernel goroutine.
type parallelState struct {
	numWorkers int
	errs       []error

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan chunkDone // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(numWorkers int) *parallelState {
	return &parallelState{
		numWorkers: numWorkers,
		errs:       make([]error, numWorkers),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(k *Kernel) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan chunkDone, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(k)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(k *Kernel) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			err := k.advanceChunk(chunk.start, chunk.end)
			p.doneChan <- chunkDone{index: chunk.index, err: err}
		}
	}
}

// advanceParallel dispatches batch to the worker pool and waits for every
// chunk. The error of the lowest failing chunk is returned so a failing run
// reports the same molecule regardless of scheduling.
func (k *Kernel) advanceParallel(n int) error {
	p := k.parallel
	// Ensure workers are running
	if !p.running {
		p.startWorkers(k)
	}

	numWorkers := p.numWorkers
	chunkSize := (n + numWorkers - 1) / numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}

		p.workChan <- workChunk{index: chunksDispatched, start: start, end: end}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	clear(p.errs)
	for i := 0; i < chunksDispatched; i++ {
		done := <-p.doneChan
		p.errs[done.index] = done.err
	}
	for _, err := range p.errs[:chunksDispatched] {
		if err != nil {
			return err
		}
	}
	return nil
}

// stopWorkers should be called when the kernel is done stepping.
func (k *Kernel) stopWorkers() {
	if k.parallel != nil {
		k.parallel.stopWorkers()
	}
}

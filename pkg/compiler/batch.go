package compiler

import "sync"

// CompileAll compiles independent requests in parallel, one goroutine each,
// and returns the units in request order.
func (c *Compiler) CompileAll(reqs []Request) []*CompiledUnit {
	units := make([]*CompiledUnit, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, r Request) {
			defer wg.Done()
			units[idx] = c.Compile(r)
		}(i, req)
	}
	wg.Wait()
	return units
}

/*
Package workers sizes worker pools for containerized deployments.

runtime.NumCPU reports the host's CPU count even under cgroup limits,
while GOMAXPROCS (Go 1.19+) tracks the container's actual allowance.
The helpers here derive pool sizes from GOMAXPROCS with a per-workload
multiplier:

	// CPU-bound work (encoding): 1 worker per CPU, max 8
	n := workers.ForCPU(8)

	// I/O-bound work (file and database operations): 2 per CPU
	n := workers.ForIO(16)

	// Mixed work (read, encode, write): 1.5 per CPU
	n := workers.ForMixed(12)

Operators can override the calculation with the CONVERT_WORKERS
environment variable; a configured limit still caps the override.
*/
package workers

// Package memory keeps the service inside its container memory limit.
//
// Every download is read fully into memory before it is written to the
// client, so a burst of large videos can push the heap toward the limit.
// The package does two things about it.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from the container limit so the garbage
// collector works harder before the kernel OOM-kills the process. Call it
// first thing in main:
//
//	memory.ConfigureFromEnv()
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container memory limit in bytes, usually from the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap, default 0.75.
//     yt-dlp and ffmpeg are child processes and need the rest.
//
// Downward API example:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// [Monitor] samples the heap and, once usage crosses the critical watermark,
// holds new downloads back in [Monitor.Wait] until usage drops below the
// high watermark. Downloads already running are not interrupted.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.Wait(ctx); err != nil {
//	    return err
//	}
package memory

/*
Package workers sizes and enforces the number of downloads that may run at
once.

Every download spawns yt-dlp (and usually ffmpeg) and holds the finished
file in memory until the response is written, so the number of concurrent
downloads bounds both CPU and memory use.

# Sizing

[ForDownloads] derives a slot count from GOMAXPROCS, which Go sets from the
container CPU limit:

	slots := workers.ForDownloads(workers.DefaultMaxDownloads)

On a pod limited to 2 CPUs this returns 3. Operators can pin the value:

	env:
	- name: MAX_CONCURRENT_DOWNLOADS
	  value: "4"

The override is still capped by the limit passed to [Count].

# Limiting

[Limiter] is a counting semaphore. Callers acquire a slot before starting
work and release it when done:

	release, err := limiter.Acquire(ctx)
	if err != nil {
		return err // ctx cancelled while waiting
	}
	defer release()
*/
package workers

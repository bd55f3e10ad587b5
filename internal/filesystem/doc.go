/*
Package filesystem manages the per-download scratch space and wraps the
filesystem calls it makes with retry logic for NFS stale file handle errors.

# Scratch directories

Every download gets its own [Scratch] directory. The extraction backend writes
into it, the finished file is read back with [Scratch.ReadOutput], and the
directory is removed with [Scratch.Release]:

	scratch, err := filesystem.NewScratch(cfg.ScratchDir, "media-porter")
	if err != nil {
	    return err
	}
	defer scratch.Release()

	name, data, err := scratch.ReadOutput("mp3")

Leftover ".part", ".ytdl" and ".temp" files are never picked as output.

# Retry Behavior

[StatWithRetry], [OpenWithRetry], [ReadDirWithRetry] and [ReadFileWithRetry]
retry only on ESTALE, with exponential backoff:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

All other errors fail immediately. Scratch roots on network storage are the
reason this exists; on local disks the wrappers add no measurable cost.

# Metrics

Operations are reported through an [Observer] installed with [SetObserver].
The metrics package provides the Prometheus implementation.
*/
package filesystem

// Package extractor drives yt-dlp through github.com/lrstanley/go-ytdlp.
//
// Inspect runs yt-dlp with --skip-download --print-json to learn the expected
// size of a download. Materialize performs the download into a caller-owned
// directory, extracting MP3 audio at 192K or merging video and audio into MP4.
// ffmpeg is located through the FFmpegPath option.
//
// Failures are classified as ErrTranscode when yt-dlp reports a
// post-processing or ffmpeg problem and ErrExtraction otherwise. The request
// context is passed to the subprocess, so cancelling it kills yt-dlp.
package extractor

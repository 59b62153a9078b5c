package stream

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FileTitle returns the title of a media file, its base name without the
// extension.
func FileTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var durationPattern = regexp.MustCompile(`(?m)^\s+Duration: (\d*):(\d*):(\d*)\.(\d*),`)

// ProbeDuration returns the duration of a media file as reported by ffprobe.
func ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, "ffprobe", path).CombinedOutput()
	if err != nil {
		return 0, err
	}

	return parseDuration(string(out))
}

func parseDuration(probe string) (time.Duration, error) {
	matches := durationPattern.FindStringSubmatch(probe)
	if len(matches) == 0 {
		return 0, fmt.Errorf("stream: no duration in ffprobe output")
	}

	if len(matches[4]) < 3 {
		matches[4] = matches[4] + strings.Repeat("0", 3-len(matches[4]))
	}

	var h, m, s, ms int
	_, err := fmt.Sscanf(matches[1]+" "+matches[2]+" "+matches[3]+" "+
		matches[4][:3], "%d %d %d %d", &h, &m, &s, &ms)
	if err != nil {
		return 0, err
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// ffmpegArgs returns the arguments making ffmpeg write the video stream of
// input as back to back BMP images of the given size to stdout.
func ffmpegArgs(input string, width, height, fps int) []string {
	return []string{
		"-loglevel", "error",
		"-i", input,
		"-an",
		"-f", "image2pipe", "-vcodec", "bmp",
		"-r", strconv.Itoa(fps),
		"-vf", "scale=" + strconv.Itoa(width) + ":" + strconv.Itoa(height),
		"pipe:1",
	}
}

// FileCommand returns an ffmpeg command decoding path into BMP frames on its
// standard output, suitable for pxl.DecodeSequence.
func FileCommand(ctx context.Context, path string, width, height, fps int) *exec.Cmd {
	return exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(path, width, height, fps)...)
}

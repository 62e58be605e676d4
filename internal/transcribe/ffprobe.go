package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/fallback"
)

// FFprobe reads container metadata with the ffprobe CLI.
type FFprobe struct {
	binPath string
}

// NewFFprobe creates an FFprobe. If binPath is empty, "ffprobe" is used.
func NewFFprobe(binPath string) *FFprobe {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &FFprobe{binPath: binPath}
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe returns format, duration_seconds, codec, sample_rate and channels for
// the first audio stream. A missing binary yields fallback.ErrUnavailable.
func (f *FFprobe) Probe(ctx context.Context, path string) (map[string]any, error) {
	bin, err := exec.LookPath(f.binPath)
	if err != nil {
		return nil, eris.Wrapf(fallback.ErrUnavailable, "ffprobe: %s not found", f.binPath)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "transcribe: ffprobe failed for %s: %s", path, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, eris.Wrap(err, "transcribe: parse ffprobe output")
	}

	meta := map[string]any{"format": out.Format.FormatName}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		meta["duration_seconds"] = d
	}
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		meta["codec"] = s.CodecName
		if sr, err := strconv.Atoi(s.SampleRate); err == nil {
			meta["sample_rate"] = sr
		}
		meta["channels"] = s.Channels
		break
	}
	return meta, nil
}

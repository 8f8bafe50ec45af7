package ffmpeg

import (
	"context"
	"regexp"
	"strings"
)

// Encoder identifies an ffmpeg video encoder.
type Encoder string

const (
	EncoderAV1NVENC  Encoder = "av1_nvenc"
	EncoderHEVCNVENC Encoder = "hevc_nvenc"
	EncoderH264NVENC Encoder = "h264_nvenc"
	EncoderX264      Encoder = "libx264"
)

// encoderLadder orders encoders best-first. Fallback after a failed session
// steps down one rung; libx264 is the floor and always assumed present.
var encoderLadder = []Encoder{
	EncoderAV1NVENC,
	EncoderHEVCNVENC,
	EncoderH264NVENC,
	EncoderX264,
}

// IsHardware reports whether the encoder needs an NVENC session.
func (e Encoder) IsHardware() bool {
	return strings.HasSuffix(string(e), "_nvenc")
}

// NextFallback returns the next rung down the ladder. ok is false at the
// floor.
func (e Encoder) NextFallback() (Encoder, bool) {
	for i, candidate := range encoderLadder {
		if candidate == e && i+1 < len(encoderLadder) {
			return encoderLadder[i+1], true
		}
	}
	return "", false
}

// encoder table rows look like " V....D av1_nvenc  NVIDIA NVENC av1 encoder".
var encoderRowRe = regexp.MustCompile(`^\s*V[A-Z.]{5,6}\s+(\S+)\s`)

// DetectEncoders queries ffmpeg for its compiled-in video encoders and
// returns the ladder entries that are actually usable. Hardware rungs are
// kept only when nvidia-smi confirms a reachable GPU.
func (c *Client) DetectEncoders(ctx context.Context, gpuPresent bool) ([]Encoder, error) {
	lines, code, err := c.runCollect(ctx, c.ffmpegBinary, "-hide_banner", "-encoders")
	if err != nil {
		return nil, err
	}
	if code != 0 {
		// A broken -encoders query still leaves software encoding viable.
		return []Encoder{EncoderX264}, nil
	}

	compiled := parseEncoderTable(lines)
	available := make([]Encoder, 0, len(encoderLadder))
	for _, candidate := range encoderLadder {
		if _, ok := compiled[string(candidate)]; !ok {
			continue
		}
		if candidate.IsHardware() && !gpuPresent {
			continue
		}
		available = append(available, candidate)
	}
	if len(available) == 0 {
		available = append(available, EncoderX264)
	}
	return available, nil
}

// GPUPresent reports whether nvidia-smi runs successfully, which is the
// cheapest reliable signal that an NVENC session can be opened.
func (c *Client) GPUPresent(ctx context.Context, nvidiaSMIBinary string) bool {
	binary := strings.TrimSpace(nvidiaSMIBinary)
	if binary == "" {
		binary = "nvidia-smi"
	}
	_, code, err := c.runCollect(ctx, binary, "-L")
	return err == nil && code == 0
}

// SelectEncoder picks the best available rung.
func SelectEncoder(available []Encoder) Encoder {
	for _, candidate := range encoderLadder {
		for _, enc := range available {
			if enc == candidate {
				return candidate
			}
		}
	}
	return EncoderX264
}

func parseEncoderTable(lines []string) map[string]struct{} {
	encoders := make(map[string]struct{})
	inTable := false
	for _, line := range lines {
		if strings.Contains(line, "------") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if m := encoderRowRe.FindStringSubmatch(line); m != nil {
			encoders[m[1]] = struct{}{}
		}
	}
	return encoders
}

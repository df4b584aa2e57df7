package chain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Strategy selects how clips are joined.
type Strategy string

const (
	// StrategyConcat joins with the concat demuxer and stream copy.
	StrategyConcat Strategy = "concat"
	// StrategyReencode joins with the concat filter and re-encodes.
	StrategyReencode Strategy = "reencode"
	// StrategyCrossfade joins with chained xfade filters and re-encodes.
	StrategyCrossfade Strategy = "crossfade"
)

// ErrFadeTooLong is returned when the fade is not shorter than the media it
// blends.
var ErrFadeTooLong = errors.New("chain: crossfade longer than clip")

// SelectStrategy picks crossfade when a positive fade is requested, otherwise
// reencode when forced, otherwise concat.
func SelectStrategy(crossfade float64, forceReencode bool) Strategy {
	switch {
	case crossfade > 0:
		return StrategyCrossfade
	case forceReencode:
		return StrategyReencode
	default:
		return StrategyConcat
	}
}

// CrossfadeOffsets computes the xfade offset of every transition from the
// measured clip durations. The fused length starts at d[0]; transition k
// starts at fused-f and the fused length grows by d[k]-f. The fade must be
// shorter than both the fused segment and the incoming clip.
func CrossfadeOffsets(durations []float64, fade float64) ([]float64, error) {
	if len(durations) < 2 {
		return nil, nil
	}

	offsets := make([]float64, 0, len(durations)-1)
	fused := durations[0]
	for k := 1; k < len(durations); k++ {
		if fade >= fused {
			return nil, fmt.Errorf("%w: fade %ss >= %ss of joined clips 1..%d", ErrFadeTooLong, formatSeconds(fade), formatSeconds(fused), k)
		}
		if fade >= durations[k] {
			return nil, fmt.Errorf("%w: fade %ss >= %ss of clip %d", ErrFadeTooLong, formatSeconds(fade), formatSeconds(durations[k]), k+1)
		}
		offsets = append(offsets, fused-fade)
		fused += durations[k] - fade
	}
	return offsets, nil
}

// ConcatArgs builds the concat demuxer command for a list file.
func ConcatArgs(listFile, output string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
}

// ReencodeArgs builds the concat filter command.
func ReencodeArgs(inputs []string, output string, encodeArgs []string) []string {
	args := inputArgs(inputs)

	var filter strings.Builder
	for i := range inputs {
		fmt.Fprintf(&filter, "[%d:v]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1[v]", len(inputs))

	args = append(args, "-filter_complex", filter.String(), "-map", "[v]")
	args = append(args, encodeArgs...)
	return append(args, output)
}

// CrossfadeArgs builds the chained xfade command. offsets holds one entry per
// transition, as returned by CrossfadeOffsets.
func CrossfadeArgs(inputs []string, offsets []float64, fade float64, output string, encodeArgs []string) []string {
	args := inputArgs(inputs)

	steps := make([]string, 0, len(offsets))
	prev := "[0:v]"
	for k, offset := range offsets {
		out := fmt.Sprintf("[v%02d]", k+1)
		if k == len(offsets)-1 {
			out = "[v]"
		}
		steps = append(steps, fmt.Sprintf("%s[%d:v]xfade=transition=fade:duration=%s:offset=%s%s",
			prev, k+1, formatSeconds(fade), formatSeconds(offset), out))
		prev = out
	}

	args = append(args, "-filter_complex", strings.Join(steps, ";"), "-map", "[v]")
	args = append(args, encodeArgs...)
	return append(args, output)
}

func inputArgs(inputs []string) []string {
	args := make([]string, 0, 2*len(inputs)+8)
	args = append(args, "-y")
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	return args
}

// formatSeconds renders seconds at millisecond precision without trailing zeros.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(math.Round(s*1000)/1000, 'f', -1, 64)
}

package tracer

import (
	"os"
	"strconv"
)

func samplerRatio() float64 {
	ratio, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_RATIO"), 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		return 1
	}
	return ratio
}

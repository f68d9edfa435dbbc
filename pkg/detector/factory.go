package detector

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Algorithm names accepted by New.
const (
	AlgorithmFixed      = "fixed"
	AlgorithmChen       = "chen"
	AlgorithmBertier    = "bertier"
	AlgorithmPhiAccrual = "phiaccrual"
)

// Algorithms lists the names accepted by New.
func Algorithms() []string {
	return []string{AlgorithmFixed, AlgorithmChen, AlgorithmBertier, AlgorithmPhiAccrual}
}

// New builds the detector called name, reading its tunables from params.
// Recognised keys are alpha (chen), gamma, beta, phi, moderationstep
// (bertier), threshold and minwindowsize (phiaccrual). Keys match
// case-insensitively. Missing keys take the documented default; unparsable
// ones are logged and take the default as well.
func New(name string, params map[string]string, opts ...Option) (Detector, error) {
	o := buildOptions(opts)
	p := optionParser{params: lowerKeys(params), log: o.log.With(zap.String("algorithm", name))}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case AlgorithmFixed:
		return NewFixed(opts...), nil
	case AlgorithmChen:
		return NewChen(ChenConfig{
			Alpha: p.int64("alpha", DefaultChenAlpha),
		}, opts...), nil
	case AlgorithmBertier:
		return NewBertier(BertierConfig{
			Gamma:          p.float("gamma", DefaultBertierGamma),
			Beta:           p.float("beta", DefaultBertierBeta),
			Phi:            p.float("phi", DefaultBertierPhi),
			ModerationStep: p.int64("moderationstep", DefaultBertierModerationStep),
		}, opts...), nil
	case AlgorithmPhiAccrual, "accrual":
		return NewAccrual(AccrualConfig{
			Threshold:     p.float("threshold", DefaultAccrualThreshold),
			MinWindowSize: int(p.int64("minwindowsize", DefaultAccrualMinWindowSize)),
		}, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

type optionParser struct {
	params map[string]string
	log    *zap.Logger
}

func (p optionParser) float(key string, def float64) float64 {
	raw, ok := p.params[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.invalid(key, raw, err)
		return def
	}
	return v
}

func (p optionParser) int64(key string, def int64) int64 {
	raw, ok := p.params[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.invalid(key, raw, err)
		return def
	}
	return v
}

func (p optionParser) invalid(key, raw string, err error) {
	p.log.Warn("unparsable detector option, using default",
		zap.String("option", key),
		zap.String("value", raw),
		zap.Error(fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)))
}

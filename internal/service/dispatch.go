package service

import (
	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/kernel"
	"github.com/secondsight/rfengine/internal/proto"
	"github.com/secondsight/rfengine/internal/signal"
)

// dispatch routes one decoded request to its handler and returns the
// result payload to be wrapped in a Response envelope. Any error
// returned here is converted to an error envelope by the caller; no
// handler panics.
func (s *Server) dispatch(req proto.Request) (interface{}, error) {
	switch req.Command {
	case "ping":
		return s.handlePing(), nil
	case "psd":
		return s.handlePSD(req)
	case "fam":
		return s.handleFAM(req)
	case "wvd":
		return s.handleWVD(req)
	case "cwd":
		return s.handleCWD(req)
	case "rf_dna":
		return s.handleRFDNA(req)
	case "cumulants":
		return s.handleCumulants(req)
	case "memory":
		return s.handleMemory(), nil
	case "cleanup":
		return s.handleCleanup(), nil
	case "stats":
		return s.handleStats(), nil
	default:
		return nil, apperr.Usagef("Unknown command: %s", req.Command)
	}
}

func (s *Server) handlePing() map[string]interface{} {
	mem := s.backend.Memory()
	return map[string]interface{}{
		"status":              "ok",
		"gpu_available":       s.backend.Name() != "cpu",
		"gpu_memory_used_mb":  float64(mem.Used()) / (1024 * 1024),
		"stats":               s.stats.Snapshot(),
	}
}

func (s *Server) handleMemory() map[string]interface{} {
	mem := s.backend.Memory()
	return map[string]interface{}{
		"gpu_available": s.backend.Name() != "cpu",
		"used_bytes":    mem.Used(),
		"total_bytes":   mem.Capacity(),
	}
}

func (s *Server) handleCleanup() map[string]interface{} {
	s.backend.Memory().Cleanup()
	return map[string]interface{}{"status": "ok", "message": "cleanup complete"}
}

func (s *Server) handleStats() map[string]interface{} {
	return map[string]interface{}{"counters": s.stats.Snapshot()}
}

func blockFromRequest(req proto.Request) (*signal.IQBlock, error) {
	if len(req.IQReal) == 0 || len(req.IQImag) == 0 {
		return nil, apperr.Usagef("Missing IQ data")
	}
	if len(req.IQReal) != len(req.IQImag) {
		return nil, apperr.Usagef("iq_real and iq_imag must have equal length")
	}
	sampleRate := floatParam(req.Params, "sample_rate", 1.0)
	return signal.NewIQBlock(req.IQReal, req.IQImag, sampleRate), nil
}

func floatParam(params map[string]interface{}, key string, def float64) float64 {
	if params == nil {
		return def
	}
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func intParam(params map[string]interface{}, key string, def int) int {
	if params == nil {
		return def
	}
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return def
}

func stringParam(params map[string]interface{}, key, def string) string {
	if params == nil {
		return def
	}
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func boolParam(params map[string]interface{}, key string, def bool) bool {
	if params == nil {
		return def
	}
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func intSliceParam(params map[string]interface{}, key string, def []int) []int {
	if params == nil {
		return def
	}
	v, ok := params[key]
	if !ok {
		return def
	}
	raw, ok := v.([]interface{})
	if !ok {
		return def
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		if f, ok := item.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}

func (s *Server) handlePSD(req proto.Request) (interface{}, error) {
	block, err := blockFromRequest(req)
	if err != nil {
		return nil, err
	}
	p := kernel.PSDParams{
		FFTSize: intParam(req.Params, "fft_size", 1024),
		Overlap: floatParam(req.Params, "overlap", 0.5),
		Window:  stringParam(req.Params, "window", "hann"),
	}
	psd, err := kernel.PSD(s.backend, block, p)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"psd":      psd,
		"fft_size": p.FFTSize,
		"num_bins": len(psd),
	}, nil
}

func (s *Server) handleFAM(req proto.Request) (interface{}, error) {
	block, err := blockFromRequest(req)
	if err != nil {
		return nil, err
	}
	p := kernel.FAMParams{
		SampleRate: floatParam(req.Params, "sample_rate", block.SampleRate),
		NFFT:       intParam(req.Params, "nfft", 128),
		Overlap:    floatParam(req.Params, "overlap", 0.5),
		AlphaMax:   floatParam(req.Params, "alpha_max", 1.0),
		Window:     stringParam(req.Params, "window", "hann"),
	}
	scf, err := kernel.FAM(s.backend, block, p)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"scf_magnitude":  scf.Magnitude,
		"spectral_freqs": scf.SpectralFreqs,
		"cyclic_freqs":   scf.CyclicFreqs,
		"cyclic_profile": scf.CyclicProfile,
		"shape":          []int{len(scf.Magnitude), len(scf.SpectralFreqs)},
	}, nil
}

func (s *Server) handleWVD(req proto.Request) (interface{}, error) {
	block, err := blockFromRequest(req)
	if err != nil {
		return nil, err
	}
	p := kernel.WVDParams{
		NFFT:          intParam(req.Params, "nfft", 128),
		NumTimePoints: intParam(req.Params, "num_time_points", 0),
		Smoothing:     boolParam(req.Params, "smoothing", false),
		SmoothWindow:  intParam(req.Params, "smooth_window", 0),
	}
	tfd, err := kernel.WVD(s.backend, block, p)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"wvd":       tfd.Magnitude,
		"time_axis": tfd.TimeAxis,
		"freq_axis": tfd.FreqAxis,
		"shape":     []int{len(tfd.Magnitude), len(tfd.FreqAxis)},
	}, nil
}

func (s *Server) handleCWD(req proto.Request) (interface{}, error) {
	block, err := blockFromRequest(req)
	if err != nil {
		return nil, err
	}
	p := kernel.CWDParams{
		NFFT:          intParam(req.Params, "nfft", 128),
		Sigma:         floatParam(req.Params, "sigma", 1.0),
		NumTimePoints: intParam(req.Params, "num_time_points", 0),
	}
	tfd, err := kernel.CWD(s.backend, block, p)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cwd":       tfd.Magnitude,
		"time_axis": tfd.TimeAxis,
		"freq_axis": tfd.FreqAxis,
		"shape":     []int{len(tfd.Magnitude), len(tfd.FreqAxis)},
	}, nil
}

func (s *Server) handleRFDNA(req proto.Request) (interface{}, error) {
	block, err := blockFromRequest(req)
	if err != nil {
		return nil, err
	}
	regions := intParam(req.Params, "regions", 20)
	features, err := kernel.RFDNA(s.backend, block, kernel.RFDNAParams{Regions: regions})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"features":     features,
		"feature_count": len(features),
		"regions":      regions,
	}, nil
}

func (s *Server) handleCumulants(req proto.Request) (interface{}, error) {
	block, err := blockFromRequest(req)
	if err != nil {
		return nil, err
	}
	orders := intSliceParam(req.Params, "orders", []int{4, 6})
	c, err := kernel.ComputeCumulants(block, orders)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if c.HasCum4 {
		out["cum4"] = c.Cum4
	}
	if c.HasCum6 {
		out["cum6"] = c.Cum6
	}
	return out, nil
}

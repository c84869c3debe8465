package session

import (
	"time"

	"inferd/pkg/types"
)

// IsLoaded reports whether a model is fully loaded.
func (s *Session) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// IsGenerating reports whether a generation is in flight.
func (s *Session) IsGenerating() bool { return s.generating.Load() }

// ContextSize returns the active context size, 0 when unloaded.
func (s *Session) ContextSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.ActiveContext
}

// Info returns the loaded model's summary, zero value when unloaded.
func (s *Session) Info() types.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// ModelPath returns the loaded model file path, empty when unloaded.
func (s *Session) ModelPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelPath
}

// Plan returns the resource plan of the current load, zero value when
// unloaded.
func (s *Session) Plan() types.ResourcePlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan
}

// Device returns the device profile captured at the current load, zero
// value when unloaded.
func (s *Session) Device() types.DeviceProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Status builds a detailed status response for /v1/status.
func (s *Session) Status() types.StatusResponse {
	s.mu.RLock()
	resp := types.StatusResponse{
		ModelPath: s.modelPath,
		Device:    s.profile,
		Plan:      s.plan,
		Info:      s.info,
	}
	loaded := s.model != nil
	s.mu.RUnlock()

	state := StateUnloaded
	if loaded {
		state = StateLoaded
		if s.generating.Load() {
			state = StateGenerating
		}
	}
	resp.State = string(state)
	resp.GenerationID = s.genID.Load()
	resp.GenerationsOK = s.genOK.Load()
	resp.GenerationsCancelled = s.genCancelled.Load()
	resp.GenerationsFailed = s.genFailed.Load()
	resp.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	resp.ServerTimeUnix = time.Now().Unix()
	return resp
}

package session

import "inferd/pkg/types"

// Unload preempts any in-flight generation, then releases every loaded
// resource. Idempotent: unloading an unloaded session is a no-op.
func (s *Session) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return
	}
	path := s.modelPath
	s.publisher.Publish(Event{Name: "unload_start", Model: path, Fields: map[string]any{}})
	s.drainLocked()
	s.teardownLocked()
	s.publisher.Publish(Event{Name: "unload_done", Model: path, Fields: map[string]any{}})
}

// drainLocked stops the active generation and waits for it to exit. The
// caller holds mu; the generation exit path takes no locks, so the wait
// cannot deadlock. Afterwards no generation can touch the loaded resources:
// a caller past the entry gate still has to acquire mu before snapshotting
// them, and by then the teardown has cleared them.
func (s *Session) drainLocked() {
	if !s.generating.Load() {
		return
	}
	s.stopID.Store(s.genID.Load())
	if done := s.genDone; done != nil {
		<-done
	}
}

// teardownLocked clears the externally-visible handles first, then releases
// the underlying resources in reverse acquisition order: batch, sampler,
// context, model. A racing reader sees the full prior session or none of it,
// never a dangling reference.
func (s *Session) teardownLocked() {
	if s.model == nil {
		return
	}
	sampler, lctx, model := s.sampler, s.lctx, s.model
	s.batch = nil
	s.sampler = nil
	s.lctx = nil
	s.vocab = nil
	s.model = nil
	s.info = types.ModelInfo{}
	s.plan = types.ResourcePlan{}
	s.profile = types.DeviceProfile{}
	s.modelPath = ""
	if sampler != nil {
		sampler.Close()
	}
	if lctx != nil {
		lctx.Close()
	}
	model.Close()
}

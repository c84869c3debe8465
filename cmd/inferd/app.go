package main

import (
	"context"
	"os"
	"time"

	"inferd/internal/registry"
	"inferd/internal/session"
	"inferd/pkg/types"
)

// app adapts the single-model session and the model registry to the
// httpapi.Service surface. A nil session (the backend failed to open) keeps
// the daemon serving status, registry and health endpoints while load and
// generate report the backend error.
type app struct {
	sess       *session.Session
	modelsDir  string
	backendErr error
	start      time.Time
}

func newApp(sess *session.Session, modelsDir string, backendErr error) *app {
	return &app{sess: sess, modelsDir: modelsDir, backendErr: backendErr, start: time.Now()}
}

// ResolvePath prefers registry ids and falls back to treating model as a
// file path.
func (a *app) ResolvePath(model string) (string, bool) {
	if models, err := registry.LoadDir(a.modelsDir); err == nil {
		if m := registry.Find(models, model); m != nil {
			return m.Path, true
		}
	}
	if st, err := os.Stat(model); err == nil && !st.IsDir() {
		return model, true
	}
	return "", false
}

func (a *app) Load(path string, p session.LoadParams) error {
	if a.sess == nil {
		return a.backendErr
	}
	return a.sess.Load(path, p)
}

func (a *app) Unload() {
	if a.sess == nil {
		return
	}
	a.sess.Unload()
}

func (a *app) Generate(ctx context.Context, prompt string, maxTokens int, onToken session.TokenFunc) (session.Result, error) {
	if a.sess == nil {
		return session.Result{}, a.backendErr
	}
	return a.sess.Generate(ctx, prompt, maxTokens, onToken)
}

func (a *app) Stop() bool {
	if a.sess == nil {
		return false
	}
	return a.sess.Stop()
}

func (a *app) Status() types.StatusResponse {
	if a.sess == nil {
		return types.StatusResponse{
			State:          string(session.StateUnloaded),
			UptimeSeconds:  int64(time.Since(a.start).Seconds()),
			ServerTimeUnix: time.Now().Unix(),
		}
	}
	return a.sess.Status()
}

func (a *app) Info() types.ModelInfo {
	if a.sess == nil {
		return types.ModelInfo{}
	}
	return a.sess.Info()
}

func (a *app) IsLoaded() bool {
	return a.sess != nil && a.sess.IsLoaded()
}

func (a *app) Models() ([]types.Model, error) {
	return registry.LoadDir(a.modelsDir)
}

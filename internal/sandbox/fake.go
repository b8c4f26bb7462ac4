package sandbox

import (
	"context"
	"fmt"
	"sync"
)

var _ Engine = (*Fake)(nil)

// Fake is a scripted in-memory Engine for tests and index-less development
// runs. It records every call so tests can assert replay order.
type Fake struct {
	mu sync.Mutex

	InitErr    error
	LoadErr    error
	RunResults map[string]RunResult // keyed by code; missing keys succeed with empty stdout
	Summ       Summary
	Export     []byte

	Initialized bool
	LoadedName  string
	LoadedData  []byte
	RanCode     []string
}

func (f *Fake) Init(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitErr != nil {
		return f.InitErr
	}
	f.Initialized = true
	return nil
}

func (f *Fake) LoadFile(_ context.Context, data []byte, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Initialized {
		return fmt.Errorf("engine not initialized")
	}
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.LoadedData = append([]byte(nil), data...)
	f.LoadedName = name
	return nil
}

func (f *Fake) RunCode(_ context.Context, code string) (RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Initialized {
		return RunResult{}, fmt.Errorf("engine not initialized")
	}
	f.RanCode = append(f.RanCode, code)
	if res, ok := f.RunResults[code]; ok {
		return res, nil
	}
	return RunResult{}, nil
}

func (f *Fake) Summary(_ context.Context) (Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Initialized {
		return Summary{}, fmt.Errorf("engine not initialized")
	}
	return f.Summ, nil
}

func (f *Fake) ExportData(_ context.Context, _ ExportFormat) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Initialized {
		return nil, fmt.Errorf("engine not initialized")
	}
	return append([]byte(nil), f.Export...), nil
}

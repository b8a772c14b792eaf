package log

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func reset() {
	mu.Lock()
	defer mu.Unlock()
	log, baseLogger = nil, nil
}

func TestGetSugaredLoggerConcurrentFirstUse(t *testing.T) {
	reset()
	t.Cleanup(reset)

	const n = 16
	got := make([]*zap.SugaredLogger, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = GetSugaredLogger()
		}()
	}
	wg.Wait()

	for _, l := range got {
		assert.Same(t, got[0], l)
	}
}

func TestSetLogger(t *testing.T) {
	t.Cleanup(reset)
	nop := zap.NewNop()
	SetLogger(nop)
	assert.Same(t, baseLogger, nop)
	GetSugaredLogger().Infow("dropped")
	Sync()
}

package utils

import "sync"

var mu sync.Mutex

// ExecuteWithMutex serialises fn against every other caller. GDAL dataset
// handles are not safe to share between goroutines.
func ExecuteWithMutex(fn func()) {
	mu.Lock()
	defer mu.Unlock()
	fn()
}

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSortedKeys(t *testing.T) {
	d1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 8)
	d3 := d1.AddDate(0, 0, 16)
	m := map[time.Time]int{d2: 2, d3: 3, d1: 1}

	assert.Equal(t, []time.Time{d1, d2, d3}, GetSortedKeys(m, true))
	assert.Equal(t, []time.Time{d3, d2, d1}, GetSortedKeys(m, false))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []int{2003, 2004, 2010}, SortedKeys(map[int]string{2010: "", 2003: "", 2004: ""}))
	assert.Empty(t, SortedKeys(map[string]int{}))
}

func TestExecuteWithMutex(t *testing.T) {
	n := 0
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			ExecuteWithMutex(func() { n++ })
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, 10, n)
}

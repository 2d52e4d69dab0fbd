package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionTimerKey returns the cache key for a candidate's persisted clock
// state on one assessment.
func (r *CacheKeyStruct) SessionTimerKey(assessmentID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:assessment:%s:timer", candidateID, assessmentID)
}

var CacheKey = NewCacheKeyStruct()

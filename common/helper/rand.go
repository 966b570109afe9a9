package helper

import (
	"time"

	"golang.org/x/exp/rand"
)

// JitterDuration 返回 [0, d) 内的随机时长，用于重试退避的抖动
// 注意：仅用于调度抖动，不可用于任何需要不可预测性的业务随机
func JitterDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	rand.Seed(uint64(time.Now().UnixNano()))
	return time.Duration(rand.Int63n(int64(d)))
}

package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixPlayIdemResult：结算幂等"结果缓存"Key 的前缀。
	// 作用：缓存某个 idempotency key 对应的第一次成功结算结果（SettleOutput JSON），用于后续重复请求直接返回。
	PrefixPlayIdemResult = "play:idem:result:"
	// PrefixPlayIdemLock：结算幂等"进行中锁"Key 的前缀。
	// 作用：使用 SETNX + TTL 标记 idempotency key 正在处理，吸收瞬时重复请求，减轻数据库压力。
	PrefixPlayIdemLock = "play:idem:lock:"

	// PrefixWithdrawLock：提现串行化锁前缀。
	// 作用：SETNX 快路径拒绝同一玩家的并发提现；最终一致性由
	// withdrawal_attempts 表的 (public_key, is_active) 唯一键兜底。
	PrefixWithdrawLock = "withdraw:lock:"

	// PrefixPlayerStats：玩家聚合缓存（余额与战绩），用于查询接口快速返回
	PrefixPlayerStats = "player:stats:"
)

// PlayIdemResultKey：构造幂等"结果缓存"的完整 Key。
// 形如：play:idem:result:{idempotency_key}
func PlayIdemResultKey(k string) string { return PrefixPlayIdemResult + k }

// PlayIdemLockKey：构造幂等"进行中锁"的完整 Key。
// 形如：play:idem:lock:{idempotency_key}
func PlayIdemLockKey(k string) string { return PrefixPlayIdemLock + k }

// WithdrawLockKey：构造提现串行化锁 Key。形如：withdraw:lock:{public_key}
func WithdrawLockKey(publicKey string) string { return PrefixWithdrawLock + publicKey }

// PlayerStatsKey：构造玩家聚合缓存 Key。形如：player:stats:{public_key}
func PlayerStatsKey(publicKey string) string { return PrefixPlayerStats + publicKey }

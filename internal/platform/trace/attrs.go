package trace

// 自定义 span 属性键。
const (
	ShortCode    = "shortlink.code"
	SweepRemoved = "shortlink.sweep.removed"
)

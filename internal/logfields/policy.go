package logfields

import "go.uber.org/zap"

func Policy(val string) zap.Field {
	return zap.String("policy", val)
}

func Strategy(val string) zap.Field {
	return zap.String("policy.strategy", val)
}

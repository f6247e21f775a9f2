package service

import "errors"

var (
	// ErrUnknownSymbol 合约不在当前合约列表中
	ErrUnknownSymbol = errors.New("unknown option symbol")

	// ErrInvalidInterval K 线周期不受支持
	ErrInvalidInterval = errors.New("unsupported kline interval")

	// ErrInvalidOrder 下单参数校验失败
	ErrInvalidOrder = errors.New("invalid order")

	// ErrTradingDisabled 未配置 API Key，交易与账户接口不可用
	ErrTradingDisabled = errors.New("api credentials not configured")
)

package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"soltrack/pkg/httpclient"

	jrpc "github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPC 节点错误码
const (
	RPC_ERR_INTERNAL          = -32603 // 节点内部错误，换编码可恢复
	RPC_ERR_LONG_TERM_STORAGE = -32019 // 免费节点查询历史存储超时
)

// ErrUnavailable 熔断打开期间的快速失败错误，不发起任何网络调用
type ErrUnavailable struct {
	Upstream   string
	RetryAfter time.Duration
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("upstream %s unavailable, circuit open, retry after %s", e.Upstream, e.RetryAfter)
}

// IsBreakerOpen 判断错误是否为熔断快速失败
func IsBreakerOpen(err error) bool {
	var ue *ErrUnavailable
	return errors.As(err, &ue)
}

// IsTimeout 判断是否为超时类错误，超时类使用更长的退避基数
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code == 408 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded")
}

func isConnReset(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}

// 可重试的HTTP状态：500/502/503以及Cloudflare网关段520-524
func retryableStatus(code int) bool {
	switch code {
	case 500, 502, 503:
		return true
	}
	return code >= 520 && code <= 524
}

// IsRetryable 统一的重试分类：超时、连接重置、上游5xx
// JSON-RPC业务错误（无效地址、找不到交易等）不在此列，立即透传
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) || isConnReset(err) {
		return true
	}
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.Code)
	}
	var rpcHTTPErr *jrpc.HTTPError
	if errors.As(err, &rpcHTTPErr) {
		return retryableStatus(rpcHTTPErr.Code)
	}
	return false
}

// IsRPCInternalError 节点内部错误(-32603)，调用方应换一种编码再试一次
func IsRPCInternalError(err error) bool {
	var rpcErr *jrpc.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == RPC_ERR_INTERNAL
}

// IsLongTermStorageError 免费层节点查不到长期存储里的历史交易
// 这类错误按"交易不可用"处理，跳过而不是让整次扫描失败
func IsLongTermStorageError(err error) bool {
	var rpcErr *jrpc.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == RPC_ERR_LONG_TERM_STORAGE {
			return true
		}
		return strings.Contains(rpcErr.Message, "long-term storage")
	}
	return strings.Contains(err.Error(), "long-term storage")
}

package service

import (
	"soltrack/internal/scanner/model"
)

// SetScanStatusCallback 注册扫描进度回调，传nil注销
// 回调在扫描goroutine里同步执行，耗时逻辑应由调用方自行异步
func (a *Analyzer) SetScanStatusCallback(fn func(model.ScanStatus)) {
	a.statusMu.Lock()
	a.statusFn = fn
	a.statusMu.Unlock()
}

// WatchScanStatus 以channel订阅所有扫描的进度更新，ScanStatus自带钱包地址供订阅方过滤
// 返回的cancel注销订阅并关闭channel，可重复调用
func (a *Analyzer) WatchScanStatus(buffer int) (<-chan model.ScanStatus, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan model.ScanStatus, buffer)

	a.statusMu.Lock()
	a.watcherSeq++
	id := a.watcherSeq
	a.watchers[id] = ch
	a.statusMu.Unlock()

	cancel := func() {
		a.statusMu.Lock()
		if _, ok := a.watchers[id]; ok {
			delete(a.watchers, id)
			close(ch)
		}
		a.statusMu.Unlock()
	}
	return ch, cancel
}

// publishStatus 扫描流水线的进度推送入口
// 回调在锁外执行，允许回调里注册/注销自己或取消订阅；
// 读锁只保护channel发送期间不被cancel关闭，channel满时丢弃本条，订阅方慢不拖累扫描
func (a *Analyzer) publishStatus(st model.ScanStatus) {
	a.statusMu.RLock()
	fn := a.statusFn
	a.statusMu.RUnlock()
	if fn != nil {
		fn(st)
	}

	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	for _, ch := range a.watchers {
		select {
		case ch <- st:
		default:
		}
	}
}

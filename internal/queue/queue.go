package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool 有界工作队列
//
// 用于异步执行紧急度评估等后台任务：固定数量的工作协程消费
// 有界队列，队列满时由调用方决定降级（同步执行或丢弃）。
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
	log        *zap.Logger
}

// NewWorkerPool 创建工作队列
//
// 参数:
//   - maxWorkers: 工作协程数
//   - queueSize: 任务队列容量
func NewWorkerPool(maxWorkers, queueSize int, log *zap.Logger) *WorkerPool {
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
		log:        log,
	}
}

// Start 启动工作协程
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit 提交任务
//
// 如果队列已满，会阻塞直到有空位；队列已停止时任务被丢弃
func (p *WorkerPool) Submit(task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return
	}
	p.taskQueue <- task
}

// TrySubmit 尝试提交任务
//
// 队列已满或已停止时立即返回 false，由调用方降级处理
func (p *WorkerPool) TrySubmit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Backlog 当前队列中等待执行的任务数
func (p *WorkerPool) Backlog() int {
	return len(p.taskQueue)
}

// Stop 停止工作队列，等待已入队任务执行完毕
//
// 停止后的提交被拒绝；重复调用无效果
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.taskQueue)
	p.wg.Wait()
}

// worker 工作协程
//
// 上下文取消后先清空已入队的任务再退出，积压不被抛弃。
func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case task, ok := <-p.taskQueue:
					if !ok {
						return
					}
					p.run(task)
				default:
					return
				}
			}
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

// run 执行任务并捕获 panic，单个任务失败不影响队列。
func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

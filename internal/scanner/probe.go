package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

const (
	// 文件描述符耗尽时的重试次数与间隔
	emfileRetries = 3
	emfileBackoff = 50 * time.Millisecond
)

// ErrRateLimited 限速器在 ctx 结束前无法放行，端口没有被真正探测
var ErrRateLimited = errors.New("限速等待超出期限")

// Dialer 建立TCP连接，*net.Dialer 满足该接口
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober 单次带超时的TCP连接测试
type Prober struct {
	dialer  Dialer
	timeout time.Duration
	limiter *rate.Limiter
}

func NewProber(dialer Dialer, timeout time.Duration, limiter *rate.Limiter) *Prober {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &Prober{
		dialer:  dialer,
		timeout: timeout,
		limiter: limiter,
	}
}

// NewLimiter 按每秒探测次数创建限速器，perSecond <= 0 表示不限速
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Probe 在超时内完成TCP握手即返回 true；拒绝、超时、不可达、DNS失败都返回 false。
// 连接建立后立即关闭，不收发任何数据。
func (p *Prober) Probe(ctx context.Context, host string, port int) bool {
	open, _ := p.Check(ctx, host, port)
	return open
}

// Check 与 Probe 相同，另外报告结论是否可信：限速器拒绝放行时端口从未被拨号，
// conclusive 为 false。
func (p *Prober) Check(ctx context.Context, host string, port int) (open, conclusive bool) {
	conn, err := p.dial(ctx, host, port, p.timeout)
	if err != nil {
		return false, !errors.Is(err, ErrRateLimited)
	}
	conn.Close()
	return true, true
}

// wait 占用一个限速令牌。Wait 在预计等待超过 ctx 期限时会立即失败，
// 这种情况统一报告为 ErrRateLimited。
func (p *Prober) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return nil
}

// dial 带限速和 EMFILE 重试的拨号，调用方负责关闭连接
func (p *Prober) dial(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.connect(ctx, host, port, timeout)
}

// connect 不经过限速器的拨号
func (p *Prober) connect(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))

	for attempt := 0; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		conn, err := p.dialer.DialContext(dialCtx, "tcp", address)
		cancel()
		if err == nil {
			return conn, nil
		}

		// 并发过高导致的假关闭会让结果不稳定，稍等后重试
		if !errors.Is(err, syscall.EMFILE) || attempt >= emfileRetries {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(emfileBackoff):
		}
	}
}

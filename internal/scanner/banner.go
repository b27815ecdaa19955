package scanner

import (
	"context"
	"strings"
	"sync"
	"time"

	"TanZhen/internal/model"
	"TanZhen/internal/utils"
)

// bannerReadLimit 单次读取的最大字节数
const bannerReadLimit = 1024

var (
	headRequest    = []byte("HEAD / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	genericNewline = []byte("\r\n")
)

// greetingFor 根据服务名选择探测包
func greetingFor(service string) []byte {
	switch service {
	case model.ServiceHTTP, model.ServiceHTTPS, model.ServiceHTTPAlt:
		return headRequest
	case model.ServiceSMTP:
		return []byte("EHLO test\r\n")
	case model.ServiceFTP:
		return []byte("SYST\r\n")
	case model.ServicePOP3:
		return []byte("CAPA\r\n")
	case model.ServiceIMAP:
		return []byte("1 CAPABILITY\r\n")
	case model.ServiceTelnet:
		return genericNewline
	default:
		// 未知或自定义服务发送空行作为通用刺激
		return genericNewline
	}
}

// BannerGrabber 对开放端口建立新连接，发送问候并读取响应
type BannerGrabber struct {
	prober  *Prober
	timeout time.Duration
	threads int
	logger  *utils.Logger
}

func NewBannerGrabber(prober *Prober, timeout time.Duration, threads int) *BannerGrabber {
	if threads < 1 {
		threads = DefaultThreads
	}
	return &BannerGrabber{
		prober:  prober,
		timeout: timeout,
		threads: threads,
		logger:  utils.NewLogger("banner"),
	}
}

// GrabBanner 返回解码后的banner文本；连接、发送、读取任一步失败都返回空字符串
func (bg *BannerGrabber) GrabBanner(ctx context.Context, host string, port int, service string) string {
	text, _ := bg.grab(ctx, host, port, service)
	return text
}

// grab 先用外层 ctx 等待限速令牌，拿到令牌后才开始计算单次超时。
// 限速器拒绝放行时 conclusive 为 false，端口没有被连接过。
func (bg *BannerGrabber) grab(ctx context.Context, host string, port int, service string) (text string, conclusive bool) {
	if err := bg.prober.wait(ctx); err != nil {
		bg.logger.Debug("端口 %d 未获得限速令牌: %v", port, err)
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, bg.timeout)
	defer cancel()

	conn, err := bg.prober.connect(ctx, host, port, bg.timeout)
	if err != nil {
		bg.logger.Debug("端口 %d 连接失败: %v", port, err)
		return "", true
	}
	defer conn.Close()

	// ctx 结束时立即中断阻塞中的读写
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(greetingFor(service)); err != nil {
		bg.logger.Debug("端口 %d 发送探测包失败: %v", port, err)
		return "", true
	}

	buffer := make([]byte, bannerReadLimit)
	n, err := conn.Read(buffer)
	if n == 0 {
		if err != nil && !strings.Contains(err.Error(), "timeout") {
			bg.logger.Debug("端口 %d 读取失败: %v", port, err)
		}
		return "", true
	}

	return decodeBanner(buffer[:n]), true
}

// decodeBanner 丢弃无法解码的字节并去掉首尾空白
func decodeBanner(raw []byte) string {
	text := strings.ToValidUTF8(string(raw), "")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}

type bannerOutcome struct {
	port int
	text string
	done bool
}

// GrabAll 对所有开放端口并发抓取banner，每个端口独立连接，
// 一个端口失败不影响其他端口。只返回在 ctx 结束前完成的端口。
func (bg *BannerGrabber) GrabAll(ctx context.Context, host string, open []model.PortProbeResult) map[int]model.Banner {
	jobs := make(chan model.PortProbeResult, len(open))
	outcomes := make(chan bannerOutcome, len(open))

	for _, p := range open {
		if p.Open {
			jobs <- p
		}
	}
	close(jobs)

	workers := bg.threads
	if workers > len(open) {
		workers = len(open)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if ctx.Err() != nil {
					outcomes <- bannerOutcome{port: p.Port}
					continue
				}
				text, conclusive := bg.grab(ctx, host, p.Port, p.ServiceHint)
				outcomes <- bannerOutcome{port: p.Port, text: text, done: text != "" || (conclusive && ctx.Err() == nil)}
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	banners := make(map[int]model.Banner, len(open))
	for o := range outcomes {
		if o.done {
			banners[o.port] = model.Banner{Port: o.port, RawText: o.text}
		}
	}

	return banners
}

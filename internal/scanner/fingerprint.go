package scanner

import (
	"context"
	"net"
	"strings"

	"TanZhen/internal/model"
	"TanZhen/internal/utils"
)

var (
	// WindowsPorts SMB 和 RPC 端点映射，按顺序探测
	WindowsPorts = []int{445, 135}
	// AlivePorts 存活检测使用的端口
	AlivePorts = []int{80, 443, 135}
)

// Fingerprinter 仅凭普通TCP连接判断目标是否像Windows主机，不使用ICMP
type Fingerprinter struct {
	prober *Prober
	ports  []int
	logger *utils.Logger
}

func NewFingerprinter(prober *Prober, ports []int) *Fingerprinter {
	if len(ports) == 0 {
		ports = WindowsPorts
	}
	return &Fingerprinter{
		prober: prober,
		ports:  ports,
		logger: utils.NewLogger("fingerprint"),
	}
}

// Fingerprint 第一个开放的端口即判定为 Windows
func (f *Fingerprinter) Fingerprint(ctx context.Context, host string) model.OSFamily {
	for _, port := range f.ports {
		if ctx.Err() != nil {
			break
		}
		if f.prober.Probe(ctx, host, port) {
			f.logger.Debug("%s 端口 %d 开放，判定为 Windows", host, port)
			return model.OSWindows
		}
	}
	return model.OSUnknown
}

// Resolver 反向解析，*net.Resolver 满足该接口
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Reachability 存活检测与反向DNS，结果仅供参考，不影响后续阶段
type Reachability struct {
	prober   *Prober
	ports    []int
	resolver Resolver
}

func NewReachability(prober *Prober, ports []int, resolver Resolver) *Reachability {
	if len(ports) == 0 {
		ports = AlivePorts
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Reachability{
		prober:   prober,
		ports:    ports,
		resolver: resolver,
	}
}

// IsAlive 任一端口可连接即认为存活
func (r *Reachability) IsAlive(ctx context.Context, host string) bool {
	for _, port := range r.ports {
		if ctx.Err() != nil {
			return false
		}
		if r.prober.Probe(ctx, host, port) {
			return true
		}
	}
	return false
}

// ReverseDNS 返回目标的主机名，解析失败时为 nil
func (r *Reachability) ReverseDNS(ctx context.Context, host string) *string {
	addr := host
	if net.ParseIP(host) == nil {
		addrs, err := r.resolver.LookupHost(ctx, host)
		if err != nil || len(addrs) == 0 {
			return nil
		}
		addr = addrs[0]
	}

	names, err := r.resolver.LookupAddr(ctx, addr)
	if err != nil || len(names) == 0 {
		return nil
	}

	name := strings.TrimSuffix(names[0], ".")
	if name == "" {
		return nil
	}
	return &name
}

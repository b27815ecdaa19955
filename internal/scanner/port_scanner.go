package scanner

import (
	"context"
	"errors"
	"sort"
	"sync"

	"TanZhen/internal/model"
	"TanZhen/internal/utils"
)

// DefaultThreads 默认工作协程数
const DefaultThreads = 16

type PortScanner struct {
	prober  *Prober
	threads int
	logger  *utils.Logger
}

func NewPortScanner(prober *Prober, threads int) *PortScanner {
	if threads < 1 {
		threads = DefaultThreads
	}
	return &PortScanner{
		prober:  prober,
		threads: threads,
		logger:  utils.NewLogger("scanner"),
	}
}

type portOutcome struct {
	service model.ServiceInfo
	open    bool
	// done 探测在 ctx 结束前得出了结论
	done bool
}

// ScanPorts 用有界工作池并发探测目录中的每个端口，只返回开放端口，按端口号升序。
//
// ctx 被取消时丢弃全部结果并返回 ctx.Err()；期限到达，或限速器在期限内无法放行
// 剩余端口时，返回已确认的开放端口和 *model.PartialResultError。
func (ps *PortScanner) ScanPorts(ctx context.Context, host string, catalog []model.ServiceInfo) ([]model.PortProbeResult, error) {
	jobs := make(chan model.ServiceInfo, len(catalog))
	outcomes := make(chan portOutcome, len(catalog))

	for _, svc := range catalog {
		jobs <- svc
	}
	close(jobs)

	workers := ps.threads
	if workers > len(catalog) {
		workers = len(catalog)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go ps.worker(ctx, host, jobs, outcomes, &wg)
	}
	wg.Wait()
	close(outcomes)

	var open []model.PortProbeResult
	scanned := 0
	for o := range outcomes {
		if !o.done {
			continue
		}
		scanned++
		if o.open {
			ps.logger.Debug("端口 %d 开放 (%s)", o.service.Port, o.service.Name)
			open = append(open, model.PortProbeResult{
				Port:        o.service.Port,
				Open:        true,
				ServiceHint: o.service.Name,
			})
		}
	}

	sort.Slice(open, func(i, j int) bool {
		return open[i].Port < open[j].Port
	})

	if scanned < len(catalog) {
		// 被取消时丢弃；期限到达或限速器来不及放行时都按部分结果返回
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		ps.logger.Warn("扫描期限已到，完成 %d/%d 个端口", scanned, len(catalog))
		return open, &model.PartialResultError{Stage: "port_scan", Scanned: scanned, Total: len(catalog)}
	}

	return open, nil
}

func (ps *PortScanner) worker(ctx context.Context, host string, jobs <-chan model.ServiceInfo, outcomes chan<- portOutcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for svc := range jobs {
		if ctx.Err() != nil {
			outcomes <- portOutcome{service: svc}
			continue
		}

		open, conclusive := ps.prober.Check(ctx, host, svc.Port)
		// 关闭结论只有在端口真正被拨号且 ctx 仍有效时才可信
		outcomes <- portOutcome{
			service: svc,
			open:    open,
			done:    open || (conclusive && ctx.Err() == nil),
		}
	}
}

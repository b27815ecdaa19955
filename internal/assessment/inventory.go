package assessment

import (
	"context"
	"errors"
	"fmt"

	"TanZhen/internal/model"
	"TanZhen/internal/utils"
)

// ErrNoCollector 未配置资产采集器
var ErrNoCollector = errors.New("未配置资产采集器")

// Credentials 远程采集使用的凭据，不会被记录到日志
type Credentials struct {
	Username string
	Password string
	Domain   string
}

// InventoryCollector 远程采集主机资产信息（系统信息、补丁、服务、共享等）。
// 具体实现依赖目标平台的管理接口，这里只约定调用方式。
type InventoryCollector interface {
	Collect(ctx context.Context, target string, creds Credentials) (map[string]any, error)
}

// CollectInventory 仅在目标被识别为 Windows 时调用采集器
func (a *Assessor) CollectInventory(ctx context.Context, target string, creds Credentials, collector InventoryCollector) (map[string]any, error) {
	host, err := utils.ValidateTarget(target)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		return nil, ErrNoCollector
	}

	family, err := a.FingerprintOS(ctx, host)
	if err != nil {
		return nil, err
	}
	if family != model.OSWindows {
		return nil, &model.InputError{Field: "target", Value: host, Reason: "目标不是 Windows 主机，无法采集资产信息"}
	}

	a.logger.WithField("target", host).Info("开始采集资产信息")
	info, err := collector.Collect(ctx, host, creds)
	if err != nil {
		return nil, fmt.Errorf("采集资产信息失败: %w", err)
	}
	return info, nil
}

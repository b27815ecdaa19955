// Package testutil 提供内存中的TCP模拟目标，测试无需绑定真实端口
package testutil

import (
	"context"
	"net"
	"strconv"
	"sync"
	"syscall"
)

// Service 模拟端口的行为
type Service struct {
	// Banner 收到客户端数据后回写的内容
	Banner string
	// Greeting 连接建立后立即发送的内容（例如 SSH、FTP 欢迎信息）
	Greeting string
	// Reset 收到数据后直接关闭连接，不回写
	Reset bool
	// Hang 连接建立后什么也不做，直到客户端关闭
	Hang bool
	// Block 拨号阻塞到 ctx 结束，模拟被丢弃的 SYN
	Block bool
}

// PipeDialer 按 端口 → Service 模拟目标，未配置的端口返回 ECONNREFUSED
type PipeDialer struct {
	mu       sync.Mutex
	services map[int]Service
	dials    map[int]int
	received map[int][]byte
}

func NewPipeDialer(services map[int]Service) *PipeDialer {
	return &PipeDialer{
		services: services,
		dials:    make(map[int]int),
		received: make(map[int][]byte),
	}
}

// Dials 返回某端口被拨号的次数
func (d *PipeDialer) Dials(port int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[port]
}

// Received 返回某端口最近一次收到的数据
func (d *PipeDialer) Received(port int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.received[port]...)
}

func (d *PipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.dials[port]++
	svc, ok := d.services[port]
	d.mu.Unlock()

	if !ok {
		return nil, &net.OpError{Op: "dial", Net: network, Err: syscall.ECONNREFUSED}
	}
	if svc.Block {
		<-ctx.Done()
		return nil, &net.OpError{Op: "dial", Net: network, Err: ctx.Err()}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, server := net.Pipe()
	go d.serve(port, svc, server)
	return client, nil
}

func (d *PipeDialer) serve(port int, svc Service, conn net.Conn) {
	// net.Pipe 没有缓冲，欢迎信息与读取并行，避免双方同时写入而互相阻塞；
	// 关闭前等待欢迎信息被读走或写入失败
	greeted := make(chan struct{})
	if svc.Greeting != "" {
		go func() {
			defer close(greeted)
			_, _ = conn.Write([]byte(svc.Greeting))
		}()
	} else {
		close(greeted)
	}
	defer func() {
		<-greeted
		conn.Close()
	}()

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return
	}

	d.mu.Lock()
	d.received[port] = append([]byte(nil), buf[:n]...)
	d.mu.Unlock()

	if svc.Hang {
		_, _ = conn.Read(buf)
		return
	}
	if svc.Reset || svc.Banner == "" {
		return
	}
	_, _ = conn.Write([]byte(svc.Banner))
}

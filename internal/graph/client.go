package graph

import (
	"context"
	"errors"
)

// Client 图数据库最小访问接口
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result 查询结果
type Result struct {
	Records []Record
}

// Record 单行结果
type Record map[string]any

// Options 图数据库连接配置
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI 未配置图数据库地址
var ErrMissingURI = errors.New("graph uri is required")

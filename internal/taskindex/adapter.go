package taskindex

import (
	"context"
	"errors"
	"fmt"
)

// ErrIncompatibleService 任务索引服务缺失或不暴露任何已知 API 形状
// ErrIncompatibleService reports a task-index service that is absent or
// exposes none of the known API shapes
var ErrIncompatibleService = errors.New("task index service is missing or incompatible")

// Source 统一后的能力
// Source is the single canonical capability every shape is adapted to
type Source interface {
	GetAllTasks(ctx context.Context) ([]Record, error)
}

// Known service shapes, probed in this order.
type (
	// current: context-aware, fallible
	allTasksGetter interface {
		GetAllTasks(ctx context.Context) ([]Record, error)
	}
	// older: synchronous accessor
	allTasksLister interface {
		AllTasks() []Record
	}
	cacheHolder interface {
		Cache() TaskCache
	}
	// legacy export: untyped maps
	legacyExporter interface {
		Tasks() ([]map[string]any, error)
	}
)

// TaskCache 缓存式服务暴露的缓存对象
// TaskCache is the cache object exposed by cache-backed services
type TaskCache interface {
	GetTasks() []Record
}

// Shape names the probed API shape for diagnostics.
type Shape string

const (
	ShapeGetAllTasks Shape = "GetAllTasks"
	ShapeAllTasks    Shape = "AllTasks"
	ShapeCache       Shape = "Cache.GetTasks"
	ShapeLegacy      Shape = "Tasks"
)

// Adapt 按固定优先级探测服务形状，返回统一的 Source
// Adapt probes svc for each known shape in a fixed priority order
func Adapt(svc any) (Source, Shape, error) {
	if svc == nil {
		return nil, "", ErrIncompatibleService
	}
	switch s := svc.(type) {
	case allTasksGetter:
		return s, ShapeGetAllTasks, nil
	case allTasksLister:
		return sourceFunc(func(context.Context) ([]Record, error) {
			return s.AllTasks(), nil
		}), ShapeAllTasks, nil
	case cacheHolder:
		return sourceFunc(func(context.Context) ([]Record, error) {
			cache := s.Cache()
			if cache == nil {
				return nil, fmt.Errorf("task cache unavailable: %w", ErrIncompatibleService)
			}
			return cache.GetTasks(), nil
		}), ShapeCache, nil
	case legacyExporter:
		return sourceFunc(func(context.Context) ([]Record, error) {
			raw, err := s.Tasks()
			if err != nil {
				return nil, err
			}
			out := make([]Record, 0, len(raw))
			for _, m := range raw {
				out = append(out, Record(m))
			}
			return out, nil
		}), ShapeLegacy, nil
	}
	return nil, "", fmt.Errorf("%w: %T", ErrIncompatibleService, svc)
}

type sourceFunc func(ctx context.Context) ([]Record, error)

func (f sourceFunc) GetAllTasks(ctx context.Context) ([]Record, error) {
	return f(ctx)
}
